package model

// AllModels 返回所有需要迁移的数据库模型对象
// 新增表时只需要在这里添加, 不需要改动 main.go
func AllModels() []interface{} {
	return []interface{}{
		&Account{},
		&Transaction{},
	}
}
