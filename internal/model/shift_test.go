package model

import (
	"encoding/json"
	"reflect"
	"testing"

	"gorm.io/datatypes"
)

func TestActivityRefs_ScanMixedStorage(t *testing.T) {
	var refs datatypes.JSONSlice[ActivityRef]
	stored := []byte(`["a1",{"_id":"b2"},{"id":"c3"},{"activity_id":"d4","id":"ignored"},{"_id":"a1"}]`)
	if err := refs.Scan(stored); err != nil {
		t.Fatalf("解析存储的引用失败: %v", err)
	}

	if got, want := RefIDs(refs), []string{"a1", "b2", "c3", "d4", "a1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("RefIDs = %v, want %v", got, want)
	}
	if got, want := RefIDs(MergeRefs(refs)), []string{"a1", "b2", "c3", "d4"}; !reflect.DeepEqual(got, want) {
		t.Errorf("MergeRefs 应按标识符去重并保持顺序, got %v want %v", got, want)
	}
}

func TestActivityRef_MissingIdentifier(t *testing.T) {
	for _, raw := range []string{`{}`, `{"_id":""}`, `{"name":"x"}`} {
		var ref ActivityRef
		if err := json.Unmarshal([]byte(raw), &ref); err == nil {
			t.Errorf("%s 缺少标识符时应报错, got %+v", raw, ref)
		}
	}

	var refs datatypes.JSONSlice[ActivityRef]
	if err := refs.Scan([]byte(`["a1",{}]`)); err == nil {
		t.Error("列表中任一引用缺少标识符时应整体报错")
	}
}

func TestActivityRef_EncodesBareID(t *testing.T) {
	refs := []ActivityRef{
		RefTo("a1"),
		{ID: "stale", Record: &ActivityRecord{ActivityID: "b2"}},
	}
	out, err := json.Marshal(refs)
	if err != nil {
		t.Fatalf("编码失败: %v", err)
	}
	if string(out) != `["a1","b2"]` {
		t.Errorf("引用应始终编码为裸 ID, got %s", out)
	}

	value, err := datatypes.JSONSlice[ActivityRef](refs).Value()
	if err != nil {
		t.Fatalf("Value 失败: %v", err)
	}
	if s, _ := value.(string); s != `["a1","b2"]` {
		t.Errorf("存储值应为裸 ID 列表, got %v", value)
	}
}

func TestCatalogItem_BeforeCreate(t *testing.T) {
	item := &CatalogItem{Name: "Extrusora"}
	if err := item.BeforeCreate(nil); err != nil {
		t.Fatal(err)
	}
	if !IsValidID(item.ID) {
		t.Errorf("应生成 UUID 主键, got %q", item.ID)
	}

	kept := &CatalogItem{ID: "fixed"}
	kept.BeforeCreate(nil)
	if kept.ID != "fixed" {
		t.Errorf("已有主键不应被覆盖, got %q", kept.ID)
	}
}
