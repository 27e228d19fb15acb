// Package graph 依赖图：任务节点 + 带类型标签的先序边
// 提供可达性、拓扑序与紧邻邻接查询
package graph

import (
	"crypto/sha256"
	"fmt"
	"sort"

	godag "github.com/begmaroman/go-dag"

	"github.com/stevelan1995/sched-engine/pkg/core/types"
)

// vertex go-dag节点包装
// go-dag按内容哈希区分顶点，默认哈希对结构体做JSON序列化，
// 未导出字段会让所有顶点哈希相同，因此以任务ID实现 Hashable 作为顶点身份
type vertex struct {
	task *types.Task
}

// ID 实现 go-dag 的 Identifiable 接口
func (v *vertex) ID() string {
	return v.task.ID
}

// Hash 实现 go-dag 的 Hashable 接口
func (v *vertex) Hash() (godag.VHash, error) {
	return sha256.Sum256([]byte(v.task.ID)), nil
}

// Graph 依赖图（对外导出）
// 自环边仅作为退化的空操作记录，不进入先序结构
type Graph struct {
	tasks map[string]*types.Task
	edges []types.Edge

	// 先序邻接表（不含自环），children[src] = 后继列表
	children map[string][]string
	parents  map[string]map[string]types.EdgeKind // target -> source -> kind
}

// New 创建空依赖图（对外导出）
func New() *Graph {
	return &Graph{
		tasks:    make(map[string]*types.Task),
		edges:    make([]types.Edge, 0),
		children: make(map[string][]string),
		parents:  make(map[string]map[string]types.EdgeKind),
	}
}

// AddTask 添加任务节点（对外导出）
func (g *Graph) AddTask(t *types.Task) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("任务不能为空且必须有ID")
	}
	if _, exists := g.tasks[t.ID]; exists {
		return fmt.Errorf("任务 %s 已存在", t.ID)
	}
	g.tasks[t.ID] = t
	g.children[t.ID] = make([]string, 0)
	g.parents[t.ID] = make(map[string]types.EdgeKind)
	return nil
}

// AddEdge 添加依赖边 source -> target（对外导出）
// 自环边记录为NoOp标记边后直接返回，不计入先序
func (g *Graph) AddEdge(source, target string, kind types.EdgeKind) error {
	if kind != types.EdgeImmediate && kind != types.EdgeNonImmediate {
		return fmt.Errorf("非法边类型: %q", kind)
	}
	if _, ok := g.tasks[source]; !ok {
		return fmt.Errorf("源任务 %s 不存在", source)
	}
	if _, ok := g.tasks[target]; !ok {
		return fmt.Errorf("目标任务 %s 不存在", target)
	}

	if source == target {
		g.edges = append(g.edges, types.Edge{Source: source, Target: target, Kind: kind, NoOp: true})
		return nil
	}

	if _, dup := g.parents[target][source]; dup {
		return fmt.Errorf("边 %s -> %s 已存在", source, target)
	}

	g.edges = append(g.edges, types.Edge{Source: source, Target: target, Kind: kind})
	g.children[source] = append(g.children[source], target)
	g.parents[target][source] = kind
	return nil
}

// Task 按ID获取任务（对外导出）
func (g *Graph) Task(id string) (*types.Task, error) {
	t, ok := g.tasks[id]
	if !ok {
		return nil, fmt.Errorf("任务 %s 不存在", id)
	}
	return t, nil
}

// Tasks 返回所有任务（对外导出）
func (g *Graph) Tasks() map[string]*types.Task {
	return g.tasks
}

// TaskIDs 返回所有任务ID（升序）
func (g *Graph) TaskIDs() []string {
	ids := make([]string, 0, len(g.tasks))
	for id := range g.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Edges 返回所有边记录（含NoOp自环）
func (g *Graph) Edges() []types.Edge {
	return g.edges
}

// Predecessors 返回任务的先序前置集合（升序，排除自环）
// 不传kinds时返回全部类型的前置
func (g *Graph) Predecessors(id string, kinds ...types.EdgeKind) ([]string, error) {
	if _, ok := g.tasks[id]; !ok {
		return nil, fmt.Errorf("任务 %s 不存在", id)
	}
	preds := make([]string, 0, len(g.parents[id]))
	for src, kind := range g.parents[id] {
		if len(kinds) == 0 {
			preds = append(preds, src)
			continue
		}
		for _, k := range kinds {
			if kind == k {
				preds = append(preds, src)
				break
			}
		}
	}
	sort.Strings(preds)
	return preds, nil
}

// Successors 返回任务的先序后继集合（升序，排除自环）
func (g *Graph) Successors(id string) ([]string, error) {
	if _, ok := g.tasks[id]; !ok {
		return nil, fmt.Errorf("任务 %s 不存在", id)
	}
	succs := append([]string(nil), g.children[id]...)
	sort.Strings(succs)
	return succs, nil
}

// ImmediatePredecessor 返回任务的紧邻前置（至多一个）
// 第二个返回值指示是否存在；多条入向紧邻边返回MultipleImmediatePredecessorsError
func (g *Graph) ImmediatePredecessor(id string) (string, bool, error) {
	if _, ok := g.tasks[id]; !ok {
		return "", false, fmt.Errorf("任务 %s 不存在", id)
	}
	imm := make([]string, 0, 1)
	for src, kind := range g.parents[id] {
		if kind == types.EdgeImmediate {
			imm = append(imm, src)
		}
	}
	switch len(imm) {
	case 0:
		return "", false, nil
	case 1:
		return imm[0], true, nil
	default:
		sort.Strings(imm)
		return "", false, &MultipleImmediatePredecessorsError{TaskID: id, Predecessors: imm}
	}
}

// Validate 校验图的结构不变量（对外导出）
// 非自环子图必须无环；每个任务至多一条入向紧邻边
func (g *Graph) Validate() error {
	if hasCycle, path := g.detectCycleDFS(); hasCycle {
		return &CycleError{Path: path}
	}
	for id := range g.tasks {
		if _, _, err := g.ImmediatePredecessor(id); err != nil {
			return err
		}
	}
	return nil
}

// detectCycleDFS 三色标记DFS检测非自环子图中的循环
// 0=白（未访问） 1=灰（访问中） 2=黑（已访问）
func (g *Graph) detectCycleDFS() (bool, []string) {
	color := make(map[string]int, len(g.tasks))
	parent := make(map[string]string)
	cyclePath := make([]string, 0)

	var dfs func(nodeID string) bool
	dfs = func(nodeID string) bool {
		color[nodeID] = 1
		for _, childID := range g.sortedChildren(nodeID) {
			if color[childID] == 0 {
				parent[childID] = nodeID
				if dfs(childID) {
					return true
				}
			} else if color[childID] == 1 {
				// 灰色节点出现后向边，构建循环路径
				cyclePath = append(cyclePath, childID)
				cur := nodeID
				for cur != childID && cur != "" {
					cyclePath = append(cyclePath, cur)
					cur = parent[cur]
				}
				cyclePath = append(cyclePath, childID)
				return true
			}
		}
		color[nodeID] = 2
		return false
	}

	for _, nodeID := range g.TaskIDs() {
		if color[nodeID] == 0 {
			if dfs(nodeID) {
				return true, cyclePath
			}
		}
	}
	return false, nil
}

// sortedChildren 排序后的子节点列表（遍历确定性）
func (g *Graph) sortedChildren(id string) []string {
	out := append([]string(nil), g.children[id]...)
	sort.Strings(out)
	return out
}

// TopologicalOrder 返回确定性拓扑序（对外导出）
// 先用DFS做一次环检测（失败返回CycleError），再物化go-dag结构并做Kahn排序，
// 每层内按任务ID升序展开
func (g *Graph) TopologicalOrder() ([]string, error) {
	if hasCycle, path := g.detectCycleDFS(); hasCycle {
		return nil, &CycleError{Path: path}
	}

	// 已确认无环，物化go-dag结构（库内部的环检查不会再失败）
	d := godag.NewDAG[*vertex]()
	for _, t := range g.tasks {
		if err := d.AddVertexByID(t.ID, &vertex{task: t}); err != nil {
			return nil, fmt.Errorf("添加节点失败: Task ID=%s, Error=%w", t.ID, err)
		}
	}
	for _, e := range g.edges {
		if e.NoOp {
			continue
		}
		if err := d.AddEdge(e.Source, e.Target); err != nil {
			return nil, fmt.Errorf("添加边失败: %s -> %s, Error=%w", e.Source, e.Target, err)
		}
	}

	// Kahn算法：按入度分层，层内排序后展开
	inDegree := make(map[string]int, len(g.tasks))
	for id := range d.GetVertices() {
		parents, _ := d.GetParents(id)
		inDegree[id] = len(parents)
	}

	queue := make([]string, 0)
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(g.tasks))
	for len(queue) > 0 {
		sort.Strings(queue)
		nextQueue := make([]string, 0)
		for _, nodeID := range queue {
			order = append(order, nodeID)
			children, _ := d.GetChildren(nodeID)
			childIDs := make([]string, 0, len(children))
			for childID := range children {
				childIDs = append(childIDs, childID)
			}
			sort.Strings(childIDs)
			for _, childID := range childIDs {
				inDegree[childID]--
				if inDegree[childID] == 0 {
					nextQueue = append(nextQueue, childID)
				}
			}
		}
		queue = nextQueue
	}

	if len(order) != len(g.tasks) {
		return nil, fmt.Errorf("拓扑排序失败：存在未处理的节点（可能存在环）")
	}
	return order, nil
}

// Components 返回弱连通分量（对外导出）
// 分量之间无跨边，可由独立的worker并行调度；分量内与分量间顺序均确定
func (g *Graph) Components() [][]string {
	visited := make(map[string]bool, len(g.tasks))
	components := make([][]string, 0)

	for _, start := range g.TaskIDs() {
		if visited[start] {
			continue
		}
		comp := make([]string, 0)
		stack := []string{start}
		visited[start] = true
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, id)
			neighbors := append([]string(nil), g.children[id]...)
			for src := range g.parents[id] {
				neighbors = append(neighbors, src)
			}
			for _, n := range neighbors {
				if !visited[n] {
					visited[n] = true
					stack = append(stack, n)
				}
			}
		}
		sort.Strings(comp)
		components = append(components, comp)
	}
	return components
}
