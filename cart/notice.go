package cart

import (
	"fmt"
	"strings"
)

// NoticeClass groups user-facing cart notices. Each class fires at most once
// per pass regardless of how many rows it covers.
type NoticeClass string

const (
	NoticeRemoved          NoticeClass = "removed"
	NoticeQuantityAdjusted NoticeClass = "quantity_adjusted"
	NoticePriceUpdated     NoticeClass = "price_updated"
)

var noticeOrder = []NoticeClass{NoticeRemoved, NoticeQuantityAdjusted, NoticePriceUpdated}

type Notice struct {
	Class   NoticeClass `json:"class"`
	Items   []string    `json:"items"`
	Message string      `json:"message"`
}

type noticeSet struct {
	items map[NoticeClass][]string
}

func newNoticeSet() *noticeSet {
	return &noticeSet{items: make(map[NoticeClass][]string)}
}

func (s *noticeSet) add(class NoticeClass, name string) {
	if name == "" {
		name = "an item"
	}
	for _, existing := range s.items[class] {
		if existing == name {
			return
		}
	}
	s.items[class] = append(s.items[class], name)
}

func (s *noticeSet) list() []Notice {
	var out []Notice
	for _, class := range noticeOrder {
		names, ok := s.items[class]
		if !ok {
			continue
		}
		out = append(out, Notice{Class: class, Items: names, Message: message(class, names)})
	}
	return out
}

func message(class NoticeClass, names []string) string {
	list := strings.Join(names, ", ")
	switch class {
	case NoticeRemoved:
		if len(names) == 1 {
			return fmt.Sprintf("%s was removed from your cart because it is no longer available.", list)
		}
		return fmt.Sprintf("%d items were removed from your cart because they are no longer available: %s.", len(names), list)
	case NoticeQuantityAdjusted:
		return fmt.Sprintf("Quantity reduced to available stock for: %s.", list)
	case NoticePriceUpdated:
		return fmt.Sprintf("Prices have changed for: %s.", list)
	}
	return list
}
