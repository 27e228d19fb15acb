package types

import "sort"

// Machine 抽象资源池，固定CPU/RAM容量，调度期间不增删
type Machine struct {
	ID  string // 机器标签
	CPU int64  // CPU总容量（资源单位）
	RAM int64  // RAM总容量（资源单位）
}

// Fleet 机器集合
type Fleet []Machine

// SortedIDs 返回按机器ID升序排列的ID列表（确定性遍历顺序）
func (f Fleet) SortedIDs() []string {
	ids := make([]string, 0, len(f))
	for _, m := range f {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids
}

// Get 按ID查找机器
func (f Fleet) Get(id string) (Machine, bool) {
	for _, m := range f {
		if m.ID == id {
			return m, true
		}
	}
	return Machine{}, false
}
