package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写临时文件失败: %v", err)
	}
	return path
}

func TestLoadOrders(t *testing.T) {
	path := writeTemp(t, "orders.txt", `# 订单定义
00:00, GEARBOX_A, 5
01:30, MOTOR_M2, 2, 240

90, GEARBOX_A, 8
`)
	orders, err := LoadOrders(path)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("预期 3 张订单, 得到 %d", len(orders))
	}

	if orders[0].ID != "ORD-001" || orders[0].ReleaseTimeMinutes != 0 ||
		orders[0].ProductID != "GEARBOX_A" || orders[0].Priority != 5 {
		t.Errorf("第一张订单解析错误: %+v", orders[0])
	}
	if orders[0].DueTimeMinutes != -1 {
		t.Errorf("未给交期时应为 -1, 得到 %d", orders[0].DueTimeMinutes)
	}
	if orders[1].ReleaseTimeMinutes != 90 {
		t.Errorf("01:30 应解析为 90 分钟, 得到 %d", orders[1].ReleaseTimeMinutes)
	}
	if orders[1].DueTimeMinutes != 240 {
		t.Errorf("交期应为 240, 得到 %d", orders[1].DueTimeMinutes)
	}
	if orders[2].ReleaseTimeMinutes != 90 {
		t.Errorf("绝对分钟数 90 解析错误: %d", orders[2].ReleaseTimeMinutes)
	}
	for i, o := range orders {
		if o.Sequence != i {
			t.Errorf("订单 %s 的装入序号应为 %d, 得到 %d", o.ID, i, o.Sequence)
		}
		if o.CompletionTimeMinutes != -1 {
			t.Errorf("订单 %s 的完成时间初值应为 -1", o.ID)
		}
	}
}

func TestLoadOrdersBadLine(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"字段不足", "00:00, GEARBOX_A\n"},
		{"时间非法", "ab:cd, GEARBOX_A, 5\n"},
		{"分钟越界", "10:75, GEARBOX_A, 5\n"},
		{"优先级非法", "00:00, GEARBOX_A, high\n"},
		{"交期为负", "00:00, GEARBOX_A, 5, -10\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTemp(t, "orders.txt", "# 首行注释\n"+tc.content)
			if _, err := LoadOrders(path); err == nil {
				t.Fatal("非法行应当报错")
			} else if !strings.Contains(err.Error(), "第 2 行") {
				t.Errorf("错误应指明行号, 得到: %v", err)
			}
		})
	}
}

func TestLoadBOM(t *testing.T) {
	path := writeTemp(t, "bom.txt", `GEARBOX_A, 20, SHAFT=2; GEAR=6
MOTOR_M2, 30, STATOR=1;ROTOR=1;BEARING=2
`)
	catalog, err := LoadBOM(path)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if len(catalog) != 2 {
		t.Fatalf("预期 2 个产品, 得到 %d", len(catalog))
	}
	g := catalog["GEARBOX_A"]
	if g == nil || g.BaseAssemblyMinutes != 20 {
		t.Fatalf("GEARBOX_A 解析错误: %+v", g)
	}
	if g.BOM["SHAFT"] != 2 || g.BOM["GEAR"] != 6 {
		t.Errorf("GEARBOX_A 物料清单错误: %v", g.BOM)
	}
	if m := catalog["MOTOR_M2"]; len(m.BOM) != 3 {
		t.Errorf("MOTOR_M2 应有 3 种组件, 得到 %d", len(m.BOM))
	}
}

func TestLoadBOMRejectsDuplicateAndBadRows(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"重复产品", "P1, 10, A=1\nP1, 12, B=2\n", "重复定义"},
		{"时长非法", "P1, 0, A=1\n", "基础装配时长非法"},
		{"数量非正", "P1, 10, A=0\n", "物料数量非法"},
		{"清单为空", "P1, 10, ;\n", "物料清单为空"},
		{"物料项非法", "P1, 10, A-1\n", "物料项非法"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTemp(t, "bom.txt", tc.content)
			_, err := LoadBOM(path)
			if err == nil {
				t.Fatal("应当报错")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("错误信息应包含 %q, 得到: %v", tc.want, err)
			}
		})
	}
}

func TestLoadInventory(t *testing.T) {
	path := writeTemp(t, "inventory.txt", `SHAFT, 40
GEAR, 120
# 同一组件可分多行累加
SHAFT, 10
`)
	inv, err := LoadInventory(path)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if inv["SHAFT"] != 50 {
		t.Errorf("SHAFT 库存应累加为 50, 得到 %d", inv["SHAFT"])
	}
	if inv["GEAR"] != 120 {
		t.Errorf("GEAR 库存应为 120, 得到 %d", inv["GEAR"])
	}
}

func TestLoadInventoryBadQuantity(t *testing.T) {
	path := writeTemp(t, "inventory.txt", "SHAFT, -3\n")
	if _, err := LoadInventory(path); err == nil {
		t.Fatal("负数库存应当报错")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := LoadOrders(filepath.Join(t.TempDir(), "no_such.txt")); err == nil {
		t.Fatal("文件不存在应当报错")
	}
}
