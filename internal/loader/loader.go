package loader

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"fmc-sim/internal/types"
)

// 本包负责解析三种输入定义文件：订单、物料清单、初始库存
// 统一的行格式约定：'#' 开头为注释，空行跳过；任何一行格式非法都
// 会中止加载并报告文件名与行号，绝不带着残缺数据进入仿真

// LoadOrders 解析订单文件
// 每行一张订单: 下达时间,产品ID,优先级[,交期分钟]
// 下达时间支持 HH:MM 或绝对分钟数两种写法
func LoadOrders(path string) ([]*types.Order, error) {
	var orders []*types.Order
	err := eachLine(path, func(lineNo int, fields []string) error {
		if len(fields) < 3 || len(fields) > 4 {
			return fmt.Errorf("字段数应为 3 或 4, 得到 %d", len(fields))
		}

		release, err := parseReleaseTime(fields[0])
		if err != nil {
			return fmt.Errorf("下达时间非法 %q: %w", fields[0], err)
		}
		productID := fields[1]
		if productID == "" {
			return fmt.Errorf("产品 ID 不能为空")
		}
		priority, err := strconv.Atoi(fields[2])
		if err != nil {
			return fmt.Errorf("优先级非法 %q: %w", fields[2], err)
		}

		due := -1
		if len(fields) == 4 {
			due, err = strconv.Atoi(fields[3])
			if err != nil || due < 0 {
				return fmt.Errorf("交期非法 %q", fields[3])
			}
		}

		seq := len(orders)
		orders = append(orders, &types.Order{
			ID:                    fmt.Sprintf("ORD-%03d", seq+1),
			ProductID:             productID,
			ReleaseTimeMinutes:    release,
			Priority:              priority,
			DueTimeMinutes:        due,
			Sequence:              seq,
			CompletionTimeMinutes: -1,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// LoadBOM 解析物料清单文件，返回产品目录
// 每行一个产品: 产品ID,基础装配分钟,组件=数量;组件=数量;...
func LoadBOM(path string) (map[string]*types.Product, error) {
	catalog := make(map[string]*types.Product)
	err := eachLine(path, func(lineNo int, fields []string) error {
		if len(fields) != 3 {
			return fmt.Errorf("字段数应为 3, 得到 %d", len(fields))
		}
		productID := fields[0]
		if productID == "" {
			return fmt.Errorf("产品 ID 不能为空")
		}
		if _, dup := catalog[productID]; dup {
			return fmt.Errorf("产品 %s 重复定义", productID)
		}
		baseMinutes, err := strconv.Atoi(fields[1])
		if err != nil || baseMinutes <= 0 {
			return fmt.Errorf("基础装配时长非法 %q", fields[1])
		}

		bom := make(map[string]int)
		for _, pair := range strings.Split(fields[2], ";") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			kv := strings.SplitN(pair, "=", 2)
			if len(kv) != 2 {
				return fmt.Errorf("物料项非法 %q, 应为 组件=数量", pair)
			}
			qty, err := strconv.Atoi(strings.TrimSpace(kv[1]))
			if err != nil || qty <= 0 {
				return fmt.Errorf("物料数量非法 %q, 必须为正整数", kv[1])
			}
			bom[strings.TrimSpace(kv[0])] = qty
		}
		if len(bom) == 0 {
			return fmt.Errorf("产品 %s 的物料清单为空", productID)
		}

		catalog[productID] = &types.Product{
			ID:                  productID,
			BOM:                 bom,
			BaseAssemblyMinutes: baseMinutes,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

// LoadInventory 解析初始库存文件
// 每行一个组件: 组件ID,数量
func LoadInventory(path string) (map[string]int, error) {
	inventory := make(map[string]int)
	err := eachLine(path, func(lineNo int, fields []string) error {
		if len(fields) != 2 {
			return fmt.Errorf("字段数应为 2, 得到 %d", len(fields))
		}
		componentID := fields[0]
		if componentID == "" {
			return fmt.Errorf("组件 ID 不能为空")
		}
		qty, err := strconv.Atoi(fields[1])
		if err != nil || qty < 0 {
			return fmt.Errorf("库存数量非法 %q", fields[1])
		}
		inventory[componentID] += qty
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inventory, nil
}

// parseReleaseTime 解析下达时间: "HH:MM" 或绝对分钟数
func parseReleaseTime(s string) (int, error) {
	if strings.Contains(s, ":") {
		parts := strings.SplitN(s, ":", 2)
		hour, err := strconv.Atoi(parts[0])
		if err != nil || hour < 0 {
			return 0, fmt.Errorf("小时非法")
		}
		minute, err := strconv.Atoi(parts[1])
		if err != nil || minute < 0 || minute > 59 {
			return 0, fmt.Errorf("分钟非法")
		}
		return hour*60 + minute, nil
	}
	minutes, err := strconv.Atoi(s)
	if err != nil || minutes < 0 {
		return 0, fmt.Errorf("分钟数非法")
	}
	return minutes, nil
}

// eachLine 逐行读取文件，为每个有效数据行调用 fn
// fn 返回的错误会被包装为带文件名与行号的加载错误
func eachLine(path string, fn func(lineNo int, fields []string) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("打开文件失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if err := fn(lineNo, fields); err != nil {
			return fmt.Errorf("%s 第 %d 行: %w", path, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("读取 %s 失败: %w", path, err)
	}
	return nil
}
