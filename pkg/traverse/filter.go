package traverse

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// PageFilter 决定哪些页参与增强。未选中的页仍会遍历并原样写出。
type PageFilter interface {
	Selected(page int) bool
}

// AllPages 选中所有页
type AllPages struct{}

func (AllPages) Selected(int) bool { return true }

// PageRange 是闭区间 [From, To]，To 为 0 表示到文档末尾
type PageRange struct {
	From int
	To   int
}

// PageList 是页码区间列表
type PageList []PageRange

// Selected 判断页码是否落在任一区间内
func (l PageList) Selected(page int) bool {
	if len(l) == 0 {
		return true
	}
	for _, r := range l {
		if page >= r.From && (r.To == 0 || page <= r.To) {
			return true
		}
	}
	return false
}

func (l PageList) String() string {
	parts := make([]string, 0, len(l))
	for _, r := range l {
		switch {
		case r.To == 0:
			parts = append(parts, fmt.Sprintf("%d-", r.From))
		case r.From == r.To:
			parts = append(parts, strconv.Itoa(r.From))
		default:
			parts = append(parts, fmt.Sprintf("%d-%d", r.From, r.To))
		}
	}
	return strings.Join(parts, ",")
}

// ParsePageList 解析形如 "1,3-5,9-" 的页码列表，空字符串表示所有页
func ParsePageList(s string) (PageList, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var list PageList
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		from, to, isRange := strings.Cut(part, "-")
		start, err := parsePageNumber(from)
		if err != nil {
			return nil, fmt.Errorf("invalid page list %q: %w", s, err)
		}
		if !isRange {
			list = append(list, PageRange{From: start, To: start})
			continue
		}

		end := 0
		if strings.TrimSpace(to) != "" {
			end, err = parsePageNumber(to)
			if err != nil {
				return nil, fmt.Errorf("invalid page list %q: %w", s, err)
			}
			if end < start {
				return nil, fmt.Errorf("invalid page list %q: range %d-%d is reversed", s, start, end)
			}
		}
		list = append(list, PageRange{From: start, To: end})
	}

	sort.SliceStable(list, func(i, j int) bool { return list[i].From < list[j].From })
	return list, nil
}

func parsePageNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("page %q is not a number", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("page %d must be >= 1", n)
	}
	return n, nil
}
