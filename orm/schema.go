package orm

import (
	"context"
	"errors"
	"strings"

	"github.com/gotomicro/ekit/slice"

	"github.com/coderi421/ratorm/orm/internal/errs"
	"github.com/coderi421/ratorm/orm/model"
)

// SchemaGenerator 根据元数据建表和删表
type SchemaGenerator struct {
	core
	sess Session
}

func NewSchemaGenerator(sess Session) *SchemaGenerator {
	return &SchemaGenerator{
		core: sess.getCore(),
		sess: sess,
	}
}

// schema 一张表的全部 DDL
// table 必须成功，rest 里面的语句允许对象已经存在
type schema struct {
	table string
	rest  []string
}

// CreateTableSQL 只构造语句，不执行
func (g *SchemaGenerator) CreateTableSQL(entity any) ([]string, error) {
	meta, err := g.r.Get(entity)
	if err != nil {
		return nil, err
	}
	s, err := g.build(meta)
	if err != nil {
		return nil, err
	}
	return append([]string{s.table}, s.rest...), nil
}

// CreateTable 建表，然后创建索引、唯一约束和外键
// 索引、约束和外键已经存在的时候只记录日志
func (g *SchemaGenerator) CreateTable(ctx context.Context, entity any) error {
	meta, err := g.r.Get(entity)
	if err != nil {
		return err
	}
	s, err := g.build(meta)
	if err != nil {
		return err
	}
	if err = g.ddl(ctx, g.sess, meta, s.table); err != nil {
		return err
	}
	for _, stmt := range s.rest {
		err = g.ddl(ctx, g.sess, meta, stmt)
		if err == nil {
			continue
		}
		if !g.dialect.isAlreadyExists(err) {
			return err
		}
		g.logger.InfoContext(ctx, "orm: 对象已经存在，跳过", "table", meta.TableName, "sql", stmt)
	}
	return nil
}

// DropTable 删表。需要的话会在同一个连接上先关闭外键检查，结束之后总是会重新打开
func (g *SchemaGenerator) DropTable(ctx context.Context, entity any) (err error) {
	meta, err := g.r.Get(entity)
	if err != nil {
		return err
	}
	var sb strings.Builder
	sb.WriteString("DROP TABLE IF EXISTS ")
	sb.WriteString(g.quote(meta.TableName))
	if g.dialect.dropCascade() {
		sb.WriteString(" CASCADE")
	}
	sb.WriteByte(';')
	stmt := sb.String()

	disable, enable := g.dialect.foreignKeyChecks()
	if disable == "" {
		return g.ddl(ctx, g.sess, meta, stmt)
	}

	sess, release, err := g.sess.pin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if e := release(); e != nil {
			err = errors.Join(err, e)
		}
	}()
	if err = g.ddl(ctx, sess, meta, disable); err != nil {
		return err
	}
	defer func() {
		if e := g.ddl(ctx, sess, meta, enable); e != nil {
			err = errors.Join(err, e)
		}
	}()
	return g.ddl(ctx, sess, meta, stmt)
}

func (g *SchemaGenerator) ddl(ctx context.Context, sess Session, meta *model.Model, stmt string) error {
	return exec(ctx, sess, g.core, &QueryContext{
		Type:    TypeDDL,
		Builder: &staticQuery{SQL: stmt},
		Model:   meta,
	}).Err()
}

func (g *SchemaGenerator) quote(name string) string {
	q := string(g.dialect.quoter())
	return q + name + q
}

func (g *SchemaGenerator) quoteAll(cols []string) string {
	return strings.Join(slice.Map(cols, func(idx int, col string) string {
		return g.quote(col)
	}), ", ")
}

func (g *SchemaGenerator) build(meta *model.Model) (schema, error) {
	table := g.quote(meta.TableName)
	clauses := make([]string, 0, meta.ColumnCount()+1)
	for _, fd := range meta.Fields {
		clauses = append(clauses, g.columnClause(fd))
	}

	type reference struct {
		rel    *model.Relation
		target *model.Model
	}
	fks := make([]reference, 0, len(meta.JoinMap))
	for _, rel := range meta.OwningRelations() {
		tmeta, err := g.r.Get(rel.NewTarget())
		if err != nil {
			return schema{}, err
		}
		if tmeta.PK == nil {
			return schema{}, errs.NewErrMapping(meta.Name(), "关联 %s 指向的 %s 没有主键", rel.GoName, tmeta.Name())
		}
		var sb strings.Builder
		sb.WriteString(g.quote(rel.JoinColumn))
		sb.WriteByte(' ')
		sb.WriteString(columnType(g.dialect, tmeta.PK, true))
		if !rel.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if rel.Unique {
			sb.WriteString(" UNIQUE")
		}
		clauses = append(clauses, sb.String())
		fks = append(fks, reference{rel: rel, target: tmeta})
	}

	if meta.PK != nil {
		clauses = append(clauses, "PRIMARY KEY ("+g.quote(meta.PK.ColName)+")")
	}
	if g.dialect.inlineForeignKeys() {
		for _, fk := range fks {
			clauses = append(clauses, g.references(fk.rel, fk.target))
		}
	}

	res := schema{
		table: "CREATE TABLE IF NOT EXISTS " + table + " (" + strings.Join(clauses, ", ") + ");",
	}

	for _, idx := range meta.Indexes {
		res.rest = append(res.rest, g.indexClause(table, idx))
	}
	if !g.dialect.inlineForeignKeys() {
		for _, fk := range fks {
			res.rest = append(res.rest, "ALTER TABLE "+table+" ADD CONSTRAINT "+
				g.quote("fk_"+meta.TableName+"_"+fk.rel.JoinColumn)+" "+g.references(fk.rel, fk.target)+";")
		}
	}
	return res, nil
}

func (g *SchemaGenerator) columnClause(fd *model.Field) string {
	var sb strings.Builder
	sb.WriteString(g.quote(fd.ColName))
	sb.WriteByte(' ')
	sb.WriteString(ColumnType(g.dialect, fd))
	switch {
	case fd.Default != "":
		sb.WriteString(" DEFAULT ")
		sb.WriteString(fd.Default)
	case fd.UpdatedTimestamp && !fd.Date:
		sb.WriteByte(' ')
		sb.WriteString(g.dialect.updatedClause())
	case fd.CreatedTimestamp && !fd.Date:
		sb.WriteByte(' ')
		sb.WriteString(g.dialect.createdClause())
	}
	if !fd.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if fd.Unique && !fd.IsPK {
		sb.WriteString(" UNIQUE")
	}
	return sb.String()
}

func (g *SchemaGenerator) references(rel *model.Relation, target *model.Model) string {
	return "FOREIGN KEY (" + g.quote(rel.JoinColumn) + ") REFERENCES " + g.quote(target.TableName) +
		" (" + g.quote(target.PK.ColName) + ") ON DELETE " + string(rel.OnDelete) +
		" ON UPDATE " + string(rel.OnUpdate)
}

func (g *SchemaGenerator) indexClause(table string, idx model.Index) string {
	cols := g.quoteAll(idx.Columns)
	if idx.Unique && !g.dialect.uniqueViaIndex() {
		return "ALTER TABLE " + table + " ADD CONSTRAINT " + g.quote(idx.Name) + " UNIQUE (" + cols + ");"
	}
	var sb strings.Builder
	sb.WriteString("CREATE ")
	if idx.Unique {
		sb.WriteString("UNIQUE ")
	}
	sb.WriteString("INDEX ")
	if g.dialect.indexIfNotExists() {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(g.quote(idx.Name))
	sb.WriteString(" ON ")
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(cols)
	sb.WriteString(");")
	return sb.String()
}
