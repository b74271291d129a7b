package db

import "testing"

func TestOpenMemory(t *testing.T) {
	gdb, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	type widget struct {
		ID   uint
		Name string
	}
	if err := gdb.AutoMigrate(&widget{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := gdb.Create(&widget{Name: "x"}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	var n int64
	if err := gdb.Model(&widget{}).Count(&n).Error; err != nil || n != 1 {
		t.Fatalf("count = %d err=%v", n, err)
	}
}

func TestIsMemory(t *testing.T) {
	if !isMemory(":memory:") || !isMemory("file:x?mode=memory&cache=shared") || isMemory("file:data/nuwa.db") {
		t.Fatal("isMemory misclassified")
	}
}
