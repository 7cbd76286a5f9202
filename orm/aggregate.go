package orm

// Aggregate 代表聚合函数，例如 COUNT
type Aggregate struct {
	fn  string
	arg string
}

func (a Aggregate) expr() {}

// Count 获取数量，c 为 * 的时候统计全部的行
func Count(c string) Aggregate {
	return Aggregate{
		fn:  "COUNT",
		arg: c,
	}
}
