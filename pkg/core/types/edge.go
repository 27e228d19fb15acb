package types

// EdgeKind 依赖边类型
type EdgeKind string

const (
	// EdgeImmediate 紧邻依赖：先序 + 同机零间隙邻接
	EdgeImmediate EdgeKind = "imm"
	// EdgeNonImmediate 普通先序依赖：finish-before-start，机器不限
	EdgeNonImmediate EdgeKind = "non-imm"
)

// Edge 有向依赖边 (Source -> Target)
// 自环边（Source == Target）在摄入时打上NoOp标记，作为退化的空操作记录，
// 不参与环检测与先序计算
type Edge struct {
	Source string
	Target string
	Kind   EdgeKind
	NoOp   bool
}
