package model

import (
	"context"
	"reflect"
	"strings"
	"sync"

	"github.com/coderi421/ratorm/orm/internal/errs"
)

type Registry interface {
	Get(val any) (*Model, error)
	Register(val any, opts ...Option) (*Model, error)
}

type RegistryOption func(r *registry)

// RegistryWithNaming 替换默认的命名策略
func RegistryWithNaming(n NamingStrategy) RegistryOption {
	return func(r *registry) {
		r.naming = n
	}
}

// 这种包变量对测试不友好，缺乏隔离
//
//	var defaultRegistry = &registry{
//		models: make(map[reflect.Type]*model, 16),
//	}
type registry struct {
	// reflect.Type 可以解决命名冲突的问题
	models sync.Map
	naming NamingStrategy
}

func NewRegistry(opts ...RegistryOption) Registry {
	r := &registry{naming: DefaultNaming}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get 查找元数据模型
// 并发第一次访问同一个类型的时候可能会解析多次，但是只有一个结果会被保存下来，
// 所有调用者拿到的都是同一个指针
func (r *registry) Get(val any) (*Model, error) {
	typ := reflect.TypeOf(val)
	if m, ok := r.models.Load(typ); ok {
		return m.(*Model), nil
	}

	m, err := r.parseModel(val)
	if err != nil {
		return nil, err
	}
	if err = r.finalize(m); err != nil {
		return nil, err
	}
	actual, _ := r.models.LoadOrStore(typ, m)
	return actual.(*Model), nil
}

// Register registers a model in the registry with the given options.
// 已经存在的模型会被覆盖
func (r *registry) Register(val any, opts ...Option) (*Model, error) {
	m, err := r.parseModel(val)
	if err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err = opt(m); err != nil {
			return nil, err
		}
	}
	if err = r.finalize(m); err != nil {
		return nil, err
	}

	r.models.Store(reflect.TypeOf(val), m)
	return m, nil
}

// parseModel 只支持一级指针作为输入，例如 *User
// orm:"key1=value1,key2=value2"
func (r *registry) parseModel(val any) (*Model, error) {
	typ := reflect.TypeOf(val)
	if typ == nil || typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct {
		return nil, errs.NewErrPointerOnly(typ)
	}
	typ = typ.Elem()

	numField := typ.NumField()
	m := &Model{
		Type:        typ,
		Fields:      make([]*Field, 0, numField),
		FieldMap:    make(map[string]*Field, numField),
		ColumnMap:   make(map[string]*Field, numField),
		RelationMap: make(map[string]*Relation, 2),
		JoinMap:     make(map[string]*Relation, 2),
	}
	if err := r.parseFields(m, typ, nil, 0); err != nil {
		return nil, err
	}

	if tn, ok := val.(TableName); ok {
		m.TableName = tn.TableName()
	}
	if m.TableName == "" {
		m.TableName = r.naming.TableName(typ.Name())
	}
	if idx, ok := val.(Indexer); ok {
		m.Indexes = append(m.Indexes, idx.Indexes()...)
	}
	m.collectHooks()
	return m, nil
}

// parseFields 按照声明顺序处理字段，匿名嵌入的结构体是字段组，原地展开
func (r *registry) parseFields(m *Model, typ reflect.Type, index []int, base uintptr) error {
	for i := 0; i < typ.NumField(); i++ {
		fdStruct := typ.Field(i)
		if !fdStruct.IsExported() && !fdStruct.Anonymous {
			continue
		}
		tg, err := parseTag(fdStruct.Tag)
		if err != nil {
			return err
		}
		if tg.has(tagIgnore) {
			continue
		}

		idx := make([]int, len(index), len(index)+1)
		copy(idx, index)
		idx = append(idx, i)
		offset := base + fdStruct.Offset
		ft := fdStruct.Type

		if fdStruct.Anonymous && !IsValueType(ft) {
			switch {
			case ft.Kind() == reflect.Struct:
				if err = r.parseFields(m, ft, idx, offset); err != nil {
					return err
				}
				continue
			case ft.Kind() == reflect.Ptr && ft.Elem().Kind() == reflect.Struct:
				return errs.NewErrMapping(m.Name(), "字段组 %s 不能通过指针嵌入", fdStruct.Name)
			}
		}
		if !fdStruct.IsExported() {
			continue
		}

		if isRelation(ft, tg) {
			if err = r.parseRelation(m, fdStruct, tg, idx, offset); err != nil {
				return err
			}
			continue
		}
		if ft.Kind() == reflect.Struct && !IsValueType(ft) {
			return errs.NewErrMapping(m.Name(), "字段 %s 是结构体，关联必须使用指针", fdStruct.Name)
		}
		if err = r.parseField(m, fdStruct, tg, idx, offset); err != nil {
			return err
		}
	}
	return nil
}

func isRelation(ft reflect.Type, tg tags) bool {
	if tg.has(tagKeyJoin) || tg.has(tagFlagInverse) {
		return true
	}
	return ft.Kind() == reflect.Ptr && ft.Elem().Kind() == reflect.Struct && !IsValueType(ft)
}

func (r *registry) parseField(m *Model, fdStruct reflect.StructField, tg tags, idx []int, offset uintptr) error {
	size, err := tg.size()
	if err != nil {
		return err
	}
	colName := tg[tagKeyColumn]
	if colName == "" {
		// If the colName is "", user the default  ItemId -> item_id
		colName = r.naming.ColumnName(fdStruct.Name)
	}
	kind := kindOf(fdStruct.Type)
	f := &Field{
		ColName:          colName,
		GoName:           fdStruct.Name,
		Type:             fdStruct.Type,
		Kind:             kind,
		Index:            idx,
		Offset:           offset,
		IsPK:             tg.has(tagFlagPK),
		Nullable:         !tg.has(tagFlagNotNull),
		Unique:           tg.has(tagFlagUnique),
		Updatable:        !tg.has(tagFlagImmutable),
		Size:             size,
		CreatedTimestamp: tg.has(tagFlagCreated),
		UpdatedTimestamp: tg.has(tagFlagUpdated),
		Date:             tg.has(tagFlagDate),
		SQLType:          tg[tagKeyType],
		Default:          tg[tagKeyDefault],
	}

	enc, encSet, err := tg.enumEncoding()
	if err != nil {
		return err
	}
	if kind == KindEnum {
		f.Enum = newEnumInfo(fdStruct.Type, enc)
	} else if encSet {
		return errs.NewErrMapping(m.Name(), "字段 %s 不是枚举类型", f.GoName)
	}

	gen, genSet, err := tg.generation()
	if err != nil {
		return err
	}
	if genSet && !generationFits(gen, kind) {
		return errs.NewErrMapping(m.Name(), "字段 %s 的类型不支持 auto=%s", f.GoName, tg[tagKeyAuto])
	}
	f.Generation = gen

	if (f.CreatedTimestamp || f.UpdatedTimestamp || f.Date) && kind != KindTime {
		return errs.NewErrMapping(m.Name(), "字段 %s 不是时间类型", f.GoName)
	}

	if f.IsPK {
		if m.PK != nil {
			return errs.NewErrMapping(m.Name(), "只能有一个主键，%s 和 %s 都声明了 pk", m.PK.GoName, f.GoName)
		}
		m.PK = f
	}

	m.Fields = append(m.Fields, f)
	m.FieldMap[f.GoName] = f
	m.ColumnMap[f.ColName] = f
	return nil
}

func generationFits(g Generation, k Kind) bool {
	switch g {
	case GenerationUUID:
		return k == KindUUID || k == KindString
	case GenerationULID:
		return k == KindString
	case GenerationIncrement:
		return k.IsInteger()
	}
	return true
}

func (r *registry) parseRelation(m *Model, fdStruct reflect.StructField, tg tags, idx []int, offset uintptr) error {
	ft := fdStruct.Type
	if ft.Kind() != reflect.Ptr || ft.Elem().Kind() != reflect.Struct {
		return errs.NewErrMapping(m.Name(), "关联 %s 的目标必须是结构体指针", fdStruct.Name)
	}
	rel := &Relation{
		GoName:    fdStruct.Name,
		Target:    ft,
		Nullable:  !tg.has(tagFlagNotNull),
		Unique:    tg.has(tagFlagUnique),
		Updatable: !tg.has(tagFlagImmutable),
		Index:     idx,
		Offset:    offset,
	}
	var err error
	if rel.OnDelete, err = tg.action(tagKeyOnDelete); err != nil {
		return err
	}
	if rel.OnUpdate, err = tg.action(tagKeyOnUpdate); err != nil {
		return err
	}
	if rel.Fetch, err = tg.fetch(); err != nil {
		return err
	}

	join, hasJoin := tg[tagKeyJoin]
	switch {
	case tg.has(tagFlagInverse) && hasJoin:
		return errs.NewErrMapping(m.Name(), "关联 %s 不能同时声明 join 和 inverse", rel.GoName)
	case tg.has(tagFlagInverse):
		rel.Owning = false
	case hasJoin:
		rel.Owning = true
		rel.JoinColumn = join
		m.JoinMap[join] = rel
	default:
		return errs.NewErrMapping(m.Name(), "关联 %s 缺少 join 或者 inverse", rel.GoName)
	}

	m.Relations = append(m.Relations, rel)
	m.RelationMap[rel.GoName] = rel
	return nil
}

// finalize 在 Option 之后执行，处理主键约定和索引
func (r *registry) finalize(m *Model) error {
	if m.PK == nil && !m.keyless {
		for _, name := range []string{"ID", "Id"} {
			if f, ok := m.FieldMap[name]; ok {
				f.IsPK = true
				m.PK = f
				break
			}
		}
	}
	if m.PK == nil && !m.keyless {
		return errs.NewErrMapping(m.Name(), "缺少主键")
	}
	// 自增只能由数据库给主键生成
	for _, f := range m.Fields {
		if f.Generation == GenerationIncrement && !f.IsPK {
			return errs.NewErrMapping(m.Name(), "字段 %s 不是主键，不能使用 auto=increment", f.GoName)
		}
	}
	if pk := m.PK; pk != nil {
		pk.Nullable = false
		pk.Updatable = false
		if pk.Generation == GenerationNone {
			switch {
			case pk.Kind.IsInteger():
				pk.Generation = GenerationIncrement
			case pk.Kind == KindUUID:
				pk.Generation = GenerationUUID
			}
		}
	}

	for i := range m.Indexes {
		idx := &m.Indexes[i]
		cols := make([]string, 0, len(idx.Columns))
		for _, c := range idx.Columns {
			col, ok := m.ColumnOf(c)
			if !ok {
				return errs.NewErrMapping(m.Name(), "索引引用了未知列 %s", c)
			}
			cols = append(cols, col)
		}
		idx.Columns = cols
		if idx.Name == "" {
			prefix := "idx_"
			if idx.Unique {
				prefix = "uk_"
			}
			idx.Name = prefix + m.TableName + "_" + strings.Join(cols, "_")
		}
	}
	return nil
}

// ColumnOf 接受列名、字段名或者外键列名，返回列名
func (m *Model) ColumnOf(name string) (string, bool) {
	if f, ok := m.ColumnMap[name]; ok {
		return f.ColName, true
	}
	if f, ok := m.FieldMap[name]; ok {
		return f.ColName, true
	}
	if rel, ok := m.JoinMap[name]; ok {
		return rel.JoinColumn, true
	}
	if rel, ok := m.RelationMap[name]; ok && rel.Owning {
		return rel.JoinColumn, true
	}
	return "", false
}

// LookupField 按照字段名或者列名查找
func (m *Model) LookupField(name string) (*Field, bool) {
	if f, ok := m.FieldMap[name]; ok {
		return f, true
	}
	f, ok := m.ColumnMap[name]
	return f, ok
}

var (
	prePersisterType  = reflect.TypeOf((*PrePersister)(nil)).Elem()
	postPersisterType = reflect.TypeOf((*PostPersister)(nil)).Elem()
	preUpdaterType    = reflect.TypeOf((*PreUpdater)(nil)).Elem()
	postUpdaterType   = reflect.TypeOf((*PostUpdater)(nil)).Elem()
)

// collectHooks 回调在构建的时候就确定下来，执行的时候不再反射
func (m *Model) collectHooks() {
	ptr := reflect.PtrTo(m.Type)
	if ptr.Implements(prePersisterType) {
		m.PrePersist = append(m.PrePersist, func(ctx context.Context, e any) error {
			return e.(PrePersister).PrePersist(ctx)
		})
	}
	if ptr.Implements(postPersisterType) {
		m.PostPersist = append(m.PostPersist, func(ctx context.Context, e any) error {
			return e.(PostPersister).PostPersist(ctx)
		})
	}
	if ptr.Implements(preUpdaterType) {
		m.PreUpdate = append(m.PreUpdate, func(ctx context.Context, e any) error {
			return e.(PreUpdater).PreUpdate(ctx)
		})
	}
	if ptr.Implements(postUpdaterType) {
		m.PostUpdate = append(m.PostUpdate, func(ctx context.Context, e any) error {
			return e.(PostUpdater).PostUpdate(ctx)
		})
	}
}
