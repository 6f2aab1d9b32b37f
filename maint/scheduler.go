// Package maint runs periodic maintenance jobs opportunistically: a due job
// waits for the host to go idle, but never longer than a maximum deferral.
package maint

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"bazaar/mq"
)

// Job is one periodic task.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) ([]string, error)
}

type jobState struct {
	Job
	next time.Time
}

type Options struct {
	Idle     time.Duration // quiet period that counts as idle
	MaxDefer time.Duration // how long past due a job may wait for idleness
	Tick     time.Duration // polling interval of Start
	Now      func() time.Time
}

type Scheduler struct {
	mu           sync.Mutex
	jobs         []*jobState
	lastActivity time.Time
	opts         Options
	pub          mq.Publisher

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(pub mq.Publisher, opts Options) *Scheduler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Idle <= 0 {
		opts.Idle = 5 * time.Second
	}
	if opts.MaxDefer <= 0 {
		opts.MaxDefer = 10 * time.Minute
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	return &Scheduler{opts: opts, pub: pub, lastActivity: opts.Now()}
}

// Add schedules job, first due one interval from now.
func (s *Scheduler) Add(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &jobState{Job: job, next: s.opts.Now().Add(job.Every)})
}

// Touch records host activity, postponing due jobs until the host is idle.
func (s *Scheduler) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = s.opts.Now()
}

// Activity wraps an HTTP handler so every request counts as host activity.
func (s *Scheduler) Activity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Touch()
		next.ServeHTTP(w, r)
	})
}

// Tick runs every job that is due and either idle or overdue past the
// maximum deferral, and returns their names.
func (s *Scheduler) Tick(ctx context.Context) []string {
	s.mu.Lock()
	now := s.opts.Now()
	idle := now.Sub(s.lastActivity) >= s.opts.Idle
	type pending struct {
		job    *jobState
		forced bool
	}
	var due []pending
	for _, j := range s.jobs {
		if now.Before(j.next) {
			continue
		}
		forced := !now.Before(j.next.Add(s.opts.MaxDefer))
		if !idle && !forced {
			continue
		}
		due = append(due, pending{job: j, forced: forced && !idle})
		j.next = now.Add(j.Every)
	}
	s.mu.Unlock()

	var ran []string
	for _, p := range due {
		s.run(ctx, p.job.Job, p.forced, now)
		ran = append(ran, p.job.Name)
	}
	return ran
}

func (s *Scheduler) run(ctx context.Context, job Job, forced bool, at time.Time) {
	evt := mq.Event{Kind: job.Name, RunID: uuid.NewString(), At: at.UTC().Format(time.RFC3339), Forced: forced}
	out, err := job.Run(ctx)
	evt.Log = out
	if err != nil {
		evt.Error = err.Error()
		log.Printf("[maint] %s failed: %v", job.Name, err)
	} else {
		log.Printf("[maint] %s ran (%d line(s), forced=%v)", job.Name, len(out), forced)
	}
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, mq.MaintenanceChannel, evt); err != nil {
		log.Printf("[maint] publish %s: %v", job.Name, err)
	}
}

// Start polls Tick until Stop or ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.opts.Tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Stop cancels the polling loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
