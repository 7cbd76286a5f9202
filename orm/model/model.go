package model

import (
	"context"
	"reflect"
)

// Option is a function type that modifies a Model.
type Option func(model *Model) error

// Model 结构体映射db后的结构
type Model struct {
	// TableName 结构体对应的表名
	TableName string
	// Type 结构体类型，不是指针
	Type reflect.Type

	// Fields 按照声明顺序排列，嵌入的结构体（字段组）在前
	Fields    []*Field
	FieldMap  map[string]*Field // 结构体 属性名 attr name 为 key  ItemId
	ColumnMap map[string]*Field // DB column name 为 key    item_id

	Relations   []*Relation
	RelationMap map[string]*Relation // 属性名为 key
	JoinMap     map[string]*Relation // 外键列名为 key，只有 owning side

	// PK 主键，只有 Keyless 的模型才会是 nil
	PK      *Field
	Indexes []Index

	PrePersist  []HookFunc
	PostPersist []HookFunc
	PreUpdate   []HookFunc
	PostUpdate  []HookFunc

	keyless bool
}

// Name 实体的名字，用于错误信息
func (m *Model) Name() string {
	return m.Type.Name()
}

// Hooks 返回某个阶段的全部回调
func (m *Model) Hooks(p Phase) []HookFunc {
	switch p {
	case PhasePrePersist:
		return m.PrePersist
	case PhasePostPersist:
		return m.PostPersist
	case PhasePreUpdate:
		return m.PreUpdate
	case PhasePostUpdate:
		return m.PostUpdate
	}
	return nil
}

// OwningRelations 只返回持有外键的关联
func (m *Model) OwningRelations() []*Relation {
	res := make([]*Relation, 0, len(m.Relations))
	for _, rel := range m.Relations {
		if rel.Owning {
			res = append(res, rel)
		}
	}
	return res
}

// ColumnCount 结果集中最多可能出现的列
func (m *Model) ColumnCount() int {
	return len(m.Fields) + len(m.JoinMap)
}

// Field 字段相关的属性
type Field struct {
	ColName string       // 数据库中的字段名
	GoName  string       // go struct 中的名字
	Type    reflect.Type // go 中的数据类型，转换成 reflect.Value 的时候，知道是什么类型，不然那没法转
	Kind    Kind

	// Index 从根结构体出发的下标路径，字段组里的字段会有多个下标
	Index []int
	// Offset 相对于对象起始地址的字段偏移量
	// uintptr 这个类型的值，只是简单记录一下位置
	Offset uintptr

	IsPK      bool
	Nullable  bool
	Unique    bool
	Updatable bool
	Size      int

	Enum       *EnumInfo
	Generation Generation

	CreatedTimestamp bool
	UpdatedTimestamp bool
	// Date 只保存日期部分
	Date bool

	// SQLType 覆盖默认的列定义
	SQLType string
	// Default 默认值的字面量，原样写进 DDL
	Default string
}

// Relation 一对一或者多对一的关联
type Relation struct {
	GoName string
	// Target 关联的类型，总是指向结构体的指针
	Target reflect.Type

	// Owning 只有 owning side 才有外键列
	Owning     bool
	JoinColumn string

	Nullable  bool
	Unique    bool
	Updatable bool
	OnDelete  Action
	OnUpdate  Action
	Fetch     FetchType

	Index  []int
	Offset uintptr
}

// NewTarget 创建一个关联类型的零值实例
func (r *Relation) NewTarget() any {
	return reflect.New(r.Target.Elem()).Interface()
}

// Index 索引或者唯一约束
type Index struct {
	Name string
	// Columns 可以是列名，也可以是字段名，注册的时候统一转成列名
	Columns []string
	Unique  bool
}

type Generation uint8

const (
	GenerationNone Generation = iota
	GenerationUUID
	GenerationULID
	GenerationIncrement
)

type Action string

const (
	ActionNoAction Action = "NO ACTION"
	ActionCascade  Action = "CASCADE"
	ActionSetNull  Action = "SET NULL"
	ActionRestrict Action = "RESTRICT"
)

type FetchType uint8

const (
	FetchEager FetchType = iota
	FetchLazy
)

// HookFunc 生命周期回调，entity 是实体的指针
type HookFunc func(ctx context.Context, entity any) error

type Phase uint8

const (
	PhasePrePersist Phase = iota
	PhasePostPersist
	PhasePreUpdate
	PhasePostUpdate
)

// 实体可以实现下面的接口来接收回调
type (
	PrePersister interface {
		PrePersist(ctx context.Context) error
	}
	PostPersister interface {
		PostPersist(ctx context.Context) error
	}
	PreUpdater interface {
		PreUpdate(ctx context.Context) error
	}
	PostUpdater interface {
		PostUpdate(ctx context.Context) error
	}
)

// Indexer 实体实现这个接口来声明索引
type Indexer interface {
	Indexes() []Index
}

// 我们支持的全部标签上的 key 都放在这里
// 方便用户查找，和我们后期维护
const (
	tagORMName = "orm"

	tagKeyColumn   = "column"
	tagKeySize     = "size"
	tagKeyType     = "type"
	tagKeyDefault  = "default"
	tagKeyEnum     = "enum"
	tagKeyAuto     = "auto"
	tagKeyJoin     = "join"
	tagKeyOnDelete = "ondelete"
	tagKeyOnUpdate = "onupdate"
	tagKeyFetch    = "fetch"

	tagFlagPK        = "pk"
	tagFlagNotNull   = "notnull"
	tagFlagUnique    = "unique"
	tagFlagImmutable = "immutable"
	tagFlagCreated   = "created"
	tagFlagUpdated   = "updated"
	tagFlagDate      = "date"
	tagFlagInverse   = "inverse"
	tagIgnore        = "-"
)

const defaultSize = 255

// TableName 用户实现这个接口来返回自定义的表名
type TableName interface {
	TableName() string
}
