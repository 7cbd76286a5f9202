package orm

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/coderi421/ratorm/orm/internal/errs"
	"github.com/coderi421/ratorm/orm/internal/valuer"
	"github.com/coderi421/ratorm/orm/model"
)

// EntityManager 负责实体的增删改
// 开启事务之后，所有的语句都通过事务执行，此时它不是并发安全的
type EntityManager struct {
	sess Session
	tx   *Tx
}

func NewEntityManager(sess Session) *EntityManager {
	return &EntityManager{sess: sess}
}

func (em *EntityManager) current() Session {
	if em.tx != nil {
		return em.tx
	}
	return em.sess
}

func (em *EntityManager) getCore() core {
	return em.sess.getCore()
}

func (em *EntityManager) queryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return em.current().queryContext(ctx, query, args...)
}

func (em *EntityManager) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return em.current().execContext(ctx, query, args...)
}

func (em *EntityManager) pin(ctx context.Context) (Session, func() error, error) {
	return em.current().pin(ctx)
}

func (em *EntityManager) activeTx() *Tx {
	return em.current().activeTx()
}

// Begin 开启事务，已经有进行中的事务时返回 ErrTxStarted
func (em *EntityManager) Begin(ctx context.Context, opts *sql.TxOptions) error {
	if em.tx != nil {
		return errs.ErrTxStarted
	}
	switch s := em.sess.(type) {
	case *DB:
		tx, err := s.BeginTx(ctx, opts)
		if err != nil {
			return err
		}
		em.tx = tx
		return nil
	case *Tx:
		return errs.ErrTxStarted
	}
	return errors.New("orm: 当前会话不支持开启事务")
}

func (em *EntityManager) Commit() error {
	if em.tx == nil {
		return errs.ErrNoTx
	}
	err := em.tx.Commit()
	em.tx = nil
	return err
}

func (em *EntityManager) Rollback() error {
	if em.tx == nil {
		return errs.ErrNoTx
	}
	err := em.tx.Rollback()
	em.tx = nil
	return err
}

// InTransaction 是否有进行中的事务
func (em *EntityManager) InTransaction() bool {
	return em.tx != nil
}

// Persist 保存一个新的实体，entity 必须是结构体指针
// 没有主键的关联实体会先被保存
func (em *EntityManager) Persist(ctx context.Context, entity any) error {
	meta, err := em.getCore().r.Get(entity)
	if err != nil {
		return err
	}
	ents := []any{entity}
	if err = em.validateGraph(ctx, meta, ents, make(map[any]struct{}, 4), make(map[any]struct{}, 4)); err != nil {
		return err
	}
	return em.persist(ctx, meta, ents, make(map[any]struct{}, 4))
}

// PersistBatch entities 是同一种实体的指针切片，所有的行通过一条语句插入
func (em *EntityManager) PersistBatch(ctx context.Context, entities any) error {
	meta, ents, err := em.batch(entities)
	if err != nil || len(ents) == 0 {
		return err
	}
	if err = em.validateGraph(ctx, meta, ents,
		make(map[any]struct{}, len(ents)), make(map[any]struct{}, len(ents))); err != nil {
		return err
	}
	return em.persist(ctx, meta, ents, make(map[any]struct{}, len(ents)))
}

func (em *EntityManager) Update(ctx context.Context, entity any) error {
	meta, err := em.getCore().r.Get(entity)
	if err != nil {
		return err
	}
	return em.update(ctx, meta, []any{entity})
}

// UpdateBatch 使用 CASE 一次更新全部的行
func (em *EntityManager) UpdateBatch(ctx context.Context, entities any) error {
	meta, ents, err := em.batch(entities)
	if err != nil || len(ents) == 0 {
		return err
	}
	return em.update(ctx, meta, ents)
}

func (em *EntityManager) Delete(ctx context.Context, entity any) error {
	meta, err := em.getCore().r.Get(entity)
	if err != nil {
		return err
	}
	return em.delete(ctx, meta, []any{entity})
}

func (em *EntityManager) DeleteBatch(ctx context.Context, entities any) error {
	meta, ents, err := em.batch(entities)
	if err != nil || len(ents) == 0 {
		return err
	}
	return em.delete(ctx, meta, ents)
}

// batch 把指针切片展开，nil 和空切片不会返回错误
func (em *EntityManager) batch(entities any) (*model.Model, []any, error) {
	if entities == nil {
		return nil, nil, nil
	}
	rv := reflect.ValueOf(entities)
	if rv.Kind() != reflect.Slice {
		return nil, nil, errs.NewErrPointerOnly(rv.Type())
	}
	if rv.Len() == 0 {
		return nil, nil, nil
	}
	ents := make([]any, 0, rv.Len())
	var typ reflect.Type
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i)
		if elem.Kind() == reflect.Interface {
			elem = elem.Elem()
		}
		if !elem.IsValid() || elem.Kind() != reflect.Ptr || elem.IsNil() {
			return nil, nil, errs.NewErrMapping("", "批量操作的第 %d 个元素不是非空的结构体指针", i)
		}
		if typ == nil {
			typ = elem.Type()
		} else if typ != elem.Type() {
			return nil, nil, errs.NewErrMapping("", "批量操作只支持同一种实体，%s 和 %s 不同", typ, elem.Type())
		}
		ents = append(ents, elem.Interface())
	}
	meta, err := em.getCore().r.Get(ents[0])
	if err != nil {
		return nil, nil, err
	}
	return meta, ents, nil
}

func runHooks(ctx context.Context, meta *model.Model, p model.Phase, ents []any) error {
	for _, ent := range ents {
		for _, hook := range meta.Hooks(p) {
			if err := hook(ctx, ent); err != nil {
				return err
			}
		}
	}
	return nil
}

func (em *EntityManager) persist(ctx context.Context, meta *model.Model, ents []any, inflight map[any]struct{}) error {
	for _, ent := range ents {
		if _, ok := inflight[ent]; ok {
			return errs.NewErrMapping(meta.Name(), "级联保存的关联中出现了环")
		}
	}
	for _, ent := range ents {
		inflight[ent] = struct{}{}
	}
	defer func() {
		for _, ent := range ents {
			delete(inflight, ent)
		}
	}()

	c := em.getCore()
	if err := runHooks(ctx, meta, model.PhasePrePersist, ents); err != nil {
		return err
	}

	now := c.now()
	vals := make([]valuer.Value, 0, len(ents))
	for _, ent := range ents {
		val := c.valCreator(ent, meta)
		if err := stamp(meta, val, now, true); err != nil {
			return err
		}
		if err := em.cascade(ctx, meta, val, inflight); err != nil {
			return err
		}
		vals = append(vals, val)
	}

	// 自增主键只有全部没有赋值的时候才会从 INSERT 里去掉
	generated, err := generateKeys(meta, vals)
	if err != nil {
		return err
	}

	ins := newInserter(c, meta)
	for _, fd := range meta.Fields {
		if fd.IsPK && generated {
			continue
		}
		ins.columns = append(ins.columns, fd.ColName)
	}
	owning := meta.OwningRelations()
	for _, rel := range owning {
		ins.columns = append(ins.columns, rel.JoinColumn)
	}
	for _, val := range vals {
		row, err := insertRow(c, meta, val, owning, generated)
		if err != nil {
			return err
		}
		ins.rows = append(ins.rows, row)
	}

	qc := &QueryContext{Type: TypeInsert, Builder: ins, Model: meta}
	if generated {
		err = em.insertReturning(ctx, c, qc, ins, vals)
	} else {
		err = exec(ctx, em, c, qc).Err()
	}
	if err != nil {
		return err
	}

	if err = runHooks(ctx, meta, model.PhasePostPersist, ents); err != nil {
		return err
	}
	if meta.PK != nil {
		ids := make([]any, 0, len(vals))
		for _, val := range vals {
			id, _ := val.Field(meta.PK.GoName)
			ids = append(ids, id)
		}
		evictIn(ctx, em, c, meta, ids...)
	}
	return nil
}

// insertReturning 插入之后回填自增主键
func (em *EntityManager) insertReturning(ctx context.Context, c core, qc *QueryContext,
	ins *inserter, vals []valuer.Value) error {
	pk := qc.Model.PK
	if c.dialect.supportsReturning() {
		ins.returning = pk.ColName
		i := 0
		return query(ctx, em, c, qc, func(rows *sql.Rows) error {
			if i >= len(vals) {
				return errs.ErrTooManyReturnedColumns
			}
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			err := vals[i].SetField(pk.GoName, id)
			i++
			return err
		})
	}

	res := exec(ctx, em, c, qc)
	last, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n := int64(len(vals))
	first := last
	if !c.dialect.batchFirstID() {
		first = last - n + 1
	}
	for i, val := range vals {
		if err = val.SetField(pk.GoName, first+int64(i)); err != nil {
			return err
		}
	}
	return nil
}

// validateGraph 在发出任何语句之前校验这次会被保存的全部实体，包括级联保存的关联
// path 是当前路径上的实体，用来发现环；done 是已经校验过的实体
func (em *EntityManager) validateGraph(ctx context.Context, meta *model.Model, ents []any,
	path, done map[any]struct{}) error {
	c := em.getCore()
	for _, ent := range ents {
		if _, ok := path[ent]; ok {
			return errs.NewErrMapping(meta.Name(), "级联保存的关联中出现了环")
		}
		if _, ok := done[ent]; ok {
			continue
		}
		if err := c.validate(ctx, meta.Name(), ent); err != nil {
			return err
		}
		path[ent] = struct{}{}
		err := em.validateRelations(ctx, meta, ent, path, done)
		delete(path, ent)
		if err != nil {
			return err
		}
		done[ent] = struct{}{}
	}
	return nil
}

func (em *EntityManager) validateRelations(ctx context.Context, meta *model.Model, ent any,
	path, done map[any]struct{}) error {
	c := em.getCore()
	val := c.valCreator(ent, meta)
	for _, rel := range meta.OwningRelations() {
		target, tmeta, err := em.unsaved(meta, val, rel)
		if err != nil {
			return err
		}
		if target == nil {
			continue
		}
		if err = em.validateGraph(ctx, tmeta, []any{target}, path, done); err != nil {
			return err
		}
	}
	return nil
}

// unsaved 返回还没有主键、需要级联保存的关联实体，不需要的时候返回 nil
func (em *EntityManager) unsaved(meta *model.Model, val valuer.Value, rel *model.Relation) (any, *model.Model, error) {
	target := val.Relation(rel.GoName)
	if target == nil {
		return nil, nil, nil
	}
	c := em.getCore()
	tmeta, err := c.r.Get(target)
	if err != nil {
		return nil, nil, err
	}
	if tmeta.PK == nil {
		return nil, nil, errs.NewErrMapping(meta.Name(), "关联 %s 指向的 %s 没有主键", rel.GoName, tmeta.Name())
	}
	id, err := c.valCreator(target, tmeta).Field(tmeta.PK.GoName)
	if err != nil {
		return nil, nil, err
	}
	if !isZeroKey(tmeta.PK, id) {
		return nil, nil, nil
	}
	return target, tmeta, nil
}

// cascade 先保存还没有主键的关联实体
func (em *EntityManager) cascade(ctx context.Context, meta *model.Model, val valuer.Value,
	inflight map[any]struct{}) error {
	for _, rel := range meta.OwningRelations() {
		target, tmeta, err := em.unsaved(meta, val, rel)
		if err != nil {
			return err
		}
		if target == nil {
			continue
		}
		if err = em.persist(ctx, tmeta, []any{target}, inflight); err != nil {
			return err
		}
	}
	return nil
}

// generateKeys 给声明了 auto=uuid 或者 auto=ulid 并且还没有值的字段生成值
// 返回 true 代表主键由数据库自增生成
func generateKeys(meta *model.Model, vals []valuer.Value) (bool, error) {
	for _, fd := range meta.Fields {
		if fd.Generation != model.GenerationUUID && fd.Generation != model.GenerationULID {
			continue
		}
		for _, val := range vals {
			cur, err := val.Field(fd.GoName)
			if err != nil {
				return false, err
			}
			if !isZeroKey(fd, cur) {
				continue
			}
			if fd.Generation == model.GenerationUUID {
				err = val.SetField(fd.GoName, uuid.New().String())
			} else {
				err = val.SetField(fd.GoName, ulid.Make().String())
			}
			if err != nil {
				return false, err
			}
		}
	}

	pk := meta.PK
	if pk == nil || pk.Generation != model.GenerationIncrement {
		return false, nil
	}
	zero := 0
	for _, val := range vals {
		id, err := val.Field(pk.GoName)
		if err != nil {
			return false, err
		}
		if isZeroKey(pk, id) {
			zero++
		}
	}
	if zero == 0 {
		return false, nil
	}
	if zero != len(vals) {
		return false, errs.NewErrQuery(meta.Name(), "批量插入不能混合指定主键和自增主键")
	}
	return true, nil
}

// stamp 设置创建时间和更新时间
func stamp(meta *model.Model, val valuer.Value, now time.Time, created bool) error {
	for _, fd := range meta.Fields {
		if fd.UpdatedTimestamp || (created && fd.CreatedTimestamp) {
			if err := val.SetField(fd.GoName, now); err != nil {
				return err
			}
		}
	}
	return nil
}

func insertRow(c core, meta *model.Model, val valuer.Value, owning []*model.Relation, generated bool) ([]any, error) {
	row := make([]any, 0, meta.ColumnCount())
	for _, fd := range meta.Fields {
		if fd.IsPK && generated {
			continue
		}
		v, err := val.Field(fd.GoName)
		if err != nil {
			return nil, err
		}
		row = append(row, v)
	}
	for _, rel := range owning {
		fk, err := foreignKey(c, val.Relation(rel.GoName))
		if err != nil {
			return nil, err
		}
		row = append(row, fk)
	}
	return row, nil
}

// foreignKey 关联实体的主键，没有关联的时候是 NULL
func foreignKey(c core, target any) (any, error) {
	if target == nil {
		return nil, nil
	}
	tmeta, err := c.r.Get(target)
	if err != nil {
		return nil, err
	}
	if tmeta.PK == nil {
		return nil, errs.NewErrMapping(tmeta.Name(), "没有主键，不能作为关联的目标")
	}
	return c.valCreator(target, tmeta).Field(tmeta.PK.GoName)
}

func (em *EntityManager) update(ctx context.Context, meta *model.Model, ents []any) error {
	pk := meta.PK
	if pk == nil {
		return errs.NewErrMapping(meta.Name(), "没有主键的实体不能更新")
	}
	c := em.getCore()
	for _, ent := range ents {
		if err := c.validate(ctx, meta.Name(), ent); err != nil {
			return err
		}
	}
	if err := runHooks(ctx, meta, model.PhasePreUpdate, ents); err != nil {
		return err
	}

	now := c.now()
	vals := make([]valuer.Value, 0, len(ents))
	ids := make([]any, 0, len(ents))
	for _, ent := range ents {
		val := c.valCreator(ent, meta)
		if err := stamp(meta, val, now, false); err != nil {
			return err
		}
		id, err := val.Field(pk.GoName)
		if err != nil {
			return err
		}
		vals = append(vals, val)
		ids = append(ids, id)
	}

	upd := newUpdater(c, meta)
	for _, fd := range meta.Fields {
		if fd.IsPK || !fd.Updatable || fd.CreatedTimestamp {
			continue
		}
		col := make([]any, 0, len(vals))
		for _, val := range vals {
			v, err := val.Field(fd.GoName)
			if err != nil {
				return err
			}
			col = append(col, v)
		}
		upd.Set(assignColumn(fd.ColName, pk.ColName, ids, col, caseCast(c.dialect, fd)))
	}
	for _, rel := range meta.OwningRelations() {
		if !rel.Updatable {
			continue
		}
		tmeta, err := c.r.Get(rel.NewTarget())
		if err != nil {
			return err
		}
		if tmeta.PK == nil {
			return errs.NewErrMapping(meta.Name(), "关联 %s 指向的 %s 没有主键", rel.GoName, tmeta.Name())
		}
		col := make([]any, 0, len(vals))
		for _, val := range vals {
			fk, err := foreignKey(c, val.Relation(rel.GoName))
			if err != nil {
				return err
			}
			col = append(col, fk)
		}
		upd.Set(assignColumn(rel.JoinColumn, pk.ColName, ids, col, caseCast(c.dialect, tmeta.PK)))
	}
	upd.Where(keyPredicate(pk.ColName, ids))

	if err := exec(ctx, em, c, &QueryContext{Type: TypeUpdate, Builder: upd, Model: meta}).Err(); err != nil {
		return err
	}
	if err := runHooks(ctx, meta, model.PhasePostUpdate, ents); err != nil {
		return err
	}
	evictIn(ctx, em, c, meta, ids...)
	return nil
}

// assignColumn 单行的时候直接赋值，多行的时候使用 CASE
func assignColumn(col, pk string, ids []any, vals []any, cast string) Assignment {
	if len(ids) == 1 {
		return Assign(col, vals[0])
	}
	return Assignment{column: col, val: caseExpr{column: pk, when: ids, then: vals, cast: cast}}
}

// caseCast CASE 的结果推断不出参数类型的方言需要显式转换
func caseCast(d Dialect, fd *model.Field) string {
	if !d.typedCase() {
		return ""
	}
	return columnType(d, fd, true)
}

func keyPredicate(pk string, ids []any) Predicate {
	if len(ids) == 1 {
		return C(pk).EQ(ids[0])
	}
	return C(pk).In(ids...)
}

func (em *EntityManager) delete(ctx context.Context, meta *model.Model, ents []any) error {
	if meta.PK == nil {
		return errs.NewErrMapping(meta.Name(), "没有主键的实体不能删除")
	}
	c := em.getCore()
	ids := make([]any, 0, len(ents))
	for _, ent := range ents {
		id, err := c.valCreator(ent, meta).Field(meta.PK.GoName)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	del := newDeleter(c, meta).Where(keyPredicate(meta.PK.ColName, ids))
	if err := exec(ctx, em, c, &QueryContext{Type: TypeDelete, Builder: del, Model: meta}).Err(); err != nil {
		return err
	}
	evictIn(ctx, em, c, meta, ids...)
	return nil
}
