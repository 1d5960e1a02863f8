package itemcf

import "sort"

// ItemIndex 是物品 ID 到稠密下标的稳定映射，一次训练构建一次，之后只读。
// 下标按 item_id 升序分配，因此"下标升序"等价于"item_id 升序"，排序打平时直接比较下标即可。
type ItemIndex struct {
	ids []string
	pos map[string]int
}

// NewItemIndex 对 ids 去重、排序后构建索引。
func NewItemIndex(ids []string) *ItemIndex {
	uniq := make(map[string]struct{}, len(ids))
	sorted := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := uniq[id]; ok {
			continue
		}
		uniq[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	pos := make(map[string]int, len(sorted))
	for i, id := range sorted {
		pos[id] = i
	}
	return &ItemIndex{ids: sorted, pos: pos}
}

// Len 返回物品数量。
func (x *ItemIndex) Len() int {
	if x == nil {
		return 0
	}
	return len(x.ids)
}

// Position 返回物品下标；训练中未出现的物品返回 false。
func (x *ItemIndex) Position(id string) (int, bool) {
	if x == nil {
		return 0, false
	}
	p, ok := x.pos[id]
	return p, ok
}

// ID 返回下标对应的物品 ID。
func (x *ItemIndex) ID(p int) string {
	return x.ids[p]
}

// IDs 返回全部物品 ID（升序副本）。
func (x *ItemIndex) IDs() []string {
	out := make([]string, len(x.ids))
	copy(out, x.ids)
	return out
}
