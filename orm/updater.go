package orm

import (
	"github.com/coderi421/ratorm/orm/internal/errs"
	"github.com/coderi421/ratorm/orm/model"
)

// updater 构造 UPDATE 语句
// 单行更新是 SET `a`=? WHERE `id` = ?
// 批量更新是 SET `a`=CASE `id` WHEN ? THEN ? END WHERE `id` IN (?,?)
type updater struct {
	builder
	assigns []Assignment
	where   []Predicate
}

func newUpdater(c core, m *model.Model) *updater {
	return &updater{builder: newBuilder(c, m)}
}

func (u *updater) Set(assigns ...Assignment) *updater {
	u.assigns = append(u.assigns, assigns...)
	return u
}

func (u *updater) Where(ps ...Predicate) *updater {
	u.where = append(u.where, ps...)
	return u
}

func (u *updater) Build() (*Query, error) {
	if len(u.assigns) == 0 {
		return nil, errs.ErrNoUpdatedColumns
	}
	u.reset()

	u.sb.WriteString("UPDATE ")
	u.quote(u.model.TableName)
	u.sb.WriteString(" SET ")
	for i, a := range u.assigns {
		if i > 0 {
			u.sb.WriteByte(',')
		}
		if err := u.buildAssignment(a); err != nil {
			return nil, err
		}
	}
	if len(u.where) > 0 {
		u.sb.WriteString(" WHERE ")
		if err := u.buildPredicates(u.where); err != nil {
			return nil, err
		}
	}
	u.sb.WriteByte(';')
	return &Query{
		SQL:  u.sb.String(),
		Args: u.args,
	}, nil
}
