package wait

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/todo-runner/pkg/core"
)

// Count returns the number of elements currently matching selector.
func Count(s core.Session, selector string) (int, error) {
	els, err := s.FindAll(selector)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

// ElementPresent holds once selector matches at least one element.
func ElementPresent(selector string) Condition {
	return Condition{
		Name: fmt.Sprintf("element %s to be present", selector),
		Check: func(s core.Session) (bool, error) {
			_, err := s.Find(selector)
			if core.IsNotFound(err) {
				return false, nil
			}
			return err == nil, err
		},
	}
}

// CountIs holds once exactly n elements match selector.
func CountIs(selector string, n int) Condition {
	return countCondition(fmt.Sprintf("count of %s to become %d", selector, n), selector, func(c int) bool { return c == n })
}

// CountAbove holds once more than n elements match selector.
func CountAbove(selector string, n int) Condition {
	return countCondition(fmt.Sprintf("count of %s to exceed %d", selector, n), selector, func(c int) bool { return c > n })
}

// CountBelow holds once fewer than n elements match selector.
func CountBelow(selector string, n int) Condition {
	return countCondition(fmt.Sprintf("count of %s to drop below %d", selector, n), selector, func(c int) bool { return c < n })
}

func countCondition(name, selector string, ok func(int) bool) Condition {
	return Condition{
		Name: name,
		Check: func(s core.Session) (bool, error) {
			n, err := Count(s, selector)
			if err != nil {
				return false, err
			}
			if !ok(n) {
				return false, fmt.Errorf("observed %d", n)
			}
			return true, nil
		},
	}
}

// HasClass holds once the element matching selector carries class in its class attribute.
func HasClass(selector, class string) Condition {
	return Condition{
		Name: fmt.Sprintf("element %s to have class %q", selector, class),
		Check: func(s core.Session) (bool, error) {
			el, err := s.Find(selector)
			if err != nil {
				return false, err
			}
			attr, err := el.GetAttribute("class")
			if err != nil {
				return false, err
			}
			return ClassListContains(attr, class), nil
		},
	}
}

// DocumentReady holds once the page reports readyState "complete".
func DocumentReady() Condition {
	return Condition{
		Name: "document to finish loading",
		Check: func(s core.Session) (bool, error) {
			v, err := s.ExecuteScript("() => document.readyState")
			if err != nil {
				return false, err
			}
			state, _ := v.(string)
			return state == "complete", nil
		},
	}
}

// Predicate wraps an arbitrary check under a descriptive name.
func Predicate(name string, check func(s core.Session) (bool, error)) Condition {
	return Condition{Name: name, Check: check}
}

// ClassListContains reports whether a space-separated class attribute holds class.
func ClassListContains(attr, class string) bool {
	for _, c := range strings.Fields(attr) {
		if c == class {
			return true
		}
	}
	return false
}
