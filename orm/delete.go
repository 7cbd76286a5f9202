package orm

import (
	"github.com/coderi421/ratorm/orm/model"
)

// deleter 构造 DELETE 语句
type deleter struct {
	builder
	where []Predicate
}

func newDeleter(c core, m *model.Model) *deleter {
	return &deleter{builder: newBuilder(c, m)}
}

// Where accepts predicates and adds them to the deleter's where clause.
func (d *deleter) Where(ps ...Predicate) *deleter {
	d.where = append(d.where, ps...)
	return d
}

// Build generates a DELETE query based on the provided parameters.
func (d *deleter) Build() (*Query, error) {
	d.reset()
	d.sb.WriteString("DELETE FROM ")
	d.quote(d.model.TableName)

	if len(d.where) > 0 {
		d.sb.WriteString(" WHERE ")
		if err := d.buildPredicates(d.where); err != nil {
			return nil, err
		}
	}

	d.sb.WriteByte(';')
	return &Query{
		SQL:  d.sb.String(),
		Args: d.args,
	}, nil
}
