package graph

import (
	"fmt"

	"pve_client/pkg/exception"
)

// TopologicalOrder — порядок обработки нод бэкендом (Kahn, при равенстве — порядок добавления).
// Цикл → exception.ErrCycle, такой граф компилировать бессмысленно.
func (d *Document) TopologicalOrder() ([]int64, error) {
	indeg := make(map[int64]int, len(d.nodes))
	next := make(map[int64][]int64, len(d.nodes))
	for _, l := range d.links {
		indeg[l.ToNode]++
		next[l.FromNode] = append(next[l.FromNode], l.ToNode)
	}

	pos := make(map[int64]int, len(d.nodes))
	queue := make([]int64, 0, len(d.nodes))
	for i, n := range d.nodes {
		pos[n.inst.ID] = i
		if indeg[n.inst.ID] == 0 {
			queue = append(queue, n.inst.ID)
		}
	}

	order := make([]int64, 0, len(d.nodes))
	for len(queue) > 0 {
		// берём самую раннюю по порядку добавления
		best := 0
		for i := 1; i < len(queue); i++ {
			if pos[queue[i]] < pos[queue[best]] {
				best = i
			}
		}
		id := queue[best]
		queue = append(queue[:best], queue[best+1:]...)
		order = append(order, id)

		for _, to := range next[id] {
			indeg[to]--
			if indeg[to] == 0 {
				queue = append(queue, to)
			}
		}
	}

	if len(order) != len(d.nodes) {
		return nil, fmt.Errorf("%w: %d of %d nodes cannot be ordered", exception.ErrCycle, len(d.nodes)-len(order), len(d.nodes))
	}
	return order, nil
}
