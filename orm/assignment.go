package orm

// Assignment UPDATE 中的赋值语句
// Assign("FirstName", "DaMing") -> SET `first_name`=?
type Assignment struct {
	column string
	val    Expression
}

func Assign(column string, val any) Assignment {
	return Assignment{
		column: column,
		val:    exprOf(val),
	}
}
