package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"

	"NaslParser/internal/model"
)

// 支持的输出格式
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
	FormatText = "text"
)

type OutputFormatter struct {
	format string
	pretty bool
}

func NewOutputFormatter(format string, pretty bool) *OutputFormatter {
	return &OutputFormatter{format: strings.ToLower(format), pretty: pretty}
}

// PrintResults 输出解析结果，outputFile为空时写到标准输出
func (of *OutputFormatter) PrintResults(results []model.ScriptResult, outputFile string) error {
	output, err := of.FormatResults(results)
	if err != nil {
		return err
	}
	return writeOutput(output, outputFile)
}

// PrintSummaries 输出数据库查询结果
func (of *OutputFormatter) PrintSummaries(summaries []model.ScriptSummary, outputFile string) error {
	output, err := of.FormatSummaries(summaries)
	if err != nil {
		return err
	}
	return writeOutput(output, outputFile)
}

func writeOutput(output, outputFile string) error {
	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0644); err != nil {
			return fmt.Errorf("写入输出文件失败: %w", err)
		}
		return nil
	}

	fmt.Print(output)
	return nil
}

func (of *OutputFormatter) FormatResults(results []model.ScriptResult) (string, error) {
	switch of.format {
	case FormatJSON:
		return of.formatJSON(of.documents(results))
	case FormatYAML:
		return of.formatYAML(results)
	case FormatCSV:
		return of.formatCSV(results)
	case FormatText:
		return of.formatText(results)
	default:
		return "", fmt.Errorf("不支持的输出格式: %s", of.format)
	}
}

func (of *OutputFormatter) FormatSummaries(summaries []model.ScriptSummary) (string, error) {
	switch of.format {
	case FormatJSON:
		return of.formatJSON(summaries)
	case FormatYAML:
		data, err := yaml.Marshal(summaries)
		if err != nil {
			return "", fmt.Errorf("生成YAML失败: %w", err)
		}
		return string(data), nil
	case FormatCSV:
		var builder strings.Builder
		writer := csv.NewWriter(&builder)
		writer.Write([]string{"path", "script_id", "name", "family", "category", "version", "cvss_score", "severity"})
		for _, s := range summaries {
			writer.Write([]string{
				s.Path, strconv.Itoa(s.ScriptID), s.Name, s.Family, s.Category, s.Version,
				fmt.Sprintf("%.1f", s.CVSSScore), s.Severity,
			})
		}
		writer.Flush()
		return builder.String(), writer.Error()
	case FormatText:
		if len(summaries) == 0 {
			return "未找到匹配的脚本\n", nil
		}
		data := pterm.TableData{{"脚本", "ID", "名称", "家族", "分数", "风险等级"}}
		for _, s := range summaries {
			data = append(data, []string{
				s.Path, strconv.Itoa(s.ScriptID), truncate(s.Name, 60), s.Family,
				fmt.Sprintf("%.1f", s.CVSSScore), s.Severity,
			})
		}
		table, err := pterm.DefaultTable.WithHasHeader(true).WithData(data).Srender()
		if err != nil {
			return "", err
		}
		return table + "\n", nil
	default:
		return "", fmt.Errorf("不支持的输出格式: %s", of.format)
	}
}

// documents JSON输出用的结构，记录部分按pretty选择键名
func (of *OutputFormatter) documents(results []model.ScriptResult) []map[string]interface{} {
	docs := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		doc := map[string]interface{}{
			"path":   r.Path,
			"scores": r.Scores,
		}
		if r.Error != "" {
			doc["error"] = r.Error
		}
		if r.Record != nil {
			doc["record"] = r.Record.ToMap(of.pretty)
		}
		docs = append(docs, doc)
	}
	return docs
}

func (of *OutputFormatter) formatJSON(v interface{}) (string, error) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("生成JSON失败: %w", err)
	}
	return string(jsonBytes) + "\n", nil
}

// formatYAML 用yaml.Node保持记录键的固定顺序
func (of *OutputFormatter) formatYAML(results []model.ScriptResult) (string, error) {
	list := &yaml.Node{Kind: yaml.SequenceNode}
	for _, r := range results {
		item := &yaml.Node{Kind: yaml.MappingNode}
		if err := appendPair(item, "path", r.Path); err != nil {
			return "", err
		}
		if r.Error != "" {
			if err := appendPair(item, "error", r.Error); err != nil {
				return "", err
			}
		}
		if err := appendPair(item, "scores", r.Scores); err != nil {
			return "", err
		}

		if r.Record != nil {
			record := &yaml.Node{Kind: yaml.MappingNode}
			values := r.Record.ToMap(of.pretty)
			for _, key := range model.ExportKeys(of.pretty) {
				if err := appendPair(record, key, values[key]); err != nil {
					return "", err
				}
			}
			item.Content = append(item.Content, scalarNode("record"), record)
		}
		list.Content = append(list.Content, item)
	}

	data, err := yaml.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("生成YAML失败: %w", err)
	}
	return string(data), nil
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func appendPair(mapping *yaml.Node, key string, value interface{}) error {
	var node yaml.Node
	if err := node.Encode(value); err != nil {
		return fmt.Errorf("生成YAML失败 %s: %w", key, err)
	}
	mapping.Content = append(mapping.Content, scalarNode(key), &node)
	return nil
}

// formatCSV 每个脚本一行，列表用;连接，映射写成k=v
func (of *OutputFormatter) formatCSV(results []model.ScriptResult) (string, error) {
	var builder strings.Builder
	writer := csv.NewWriter(&builder)

	keys := model.ExportKeys(of.pretty)
	header := append([]string{"path"}, keys...)
	header = append(header, "cvss2_score", "cvss3_score", "severity", "error")
	writer.Write(header)

	for _, r := range results {
		row := []string{r.Path}
		values := map[string]interface{}{}
		if r.Record != nil {
			values = r.Record.ToMap(of.pretty)
		}
		for _, key := range keys {
			row = append(row, flatten(values[key]))
		}
		row = append(row,
			fmt.Sprintf("%.1f", r.Scores.V2Score),
			fmt.Sprintf("%.1f", r.Scores.V3Score),
			r.Scores.Severity,
			r.Error,
		)
		writer.Write(row)
	}

	writer.Flush()
	return builder.String(), writer.Error()
}

// flatten 把记录里的值压成一个单元格
func flatten(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case []string:
		return strings.Join(v, ";")
	case []int:
		parts := make([]string, len(v))
		for i, n := range v {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, ";")
	case map[string]string:
		return joinPairs(v)
	case []map[string]string:
		parts := make([]string, len(v))
		for i, m := range v {
			parts[i] = "{" + joinPairs(m) + "}"
		}
		return strings.Join(parts, ";")
	default:
		return fmt.Sprint(v)
	}
}

func joinPairs(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return strings.Join(parts, ",")
}

// formatText 单个脚本显示全部字段，多个脚本显示汇总表
func (of *OutputFormatter) formatText(results []model.ScriptResult) (string, error) {
	if len(results) == 0 {
		return "未找到任何脚本\n", nil
	}
	if len(results) == 1 {
		return of.detailTable(results[0])
	}

	data := pterm.TableData{{"脚本", "ID", "名称", "家族", "CVE", "分数", "风险等级"}}
	failed := 0
	for _, r := range results {
		if r.Record == nil {
			failed++
			data = append(data, []string{r.Path, "-", "读取失败: " + truncate(r.Error, 40), "-", "-", "-", "-"})
			continue
		}
		score := r.Scores.V3Score
		if score == 0 {
			score = r.Scores.V2Score
		}
		data = append(data, []string{
			r.Path,
			strconv.Itoa(r.Record.ID),
			truncate(r.Record.Name, 50),
			r.Record.Family,
			strconv.Itoa(len(r.Record.CVEIDs)),
			fmt.Sprintf("%.1f", score),
			orDash(r.Scores.Severity),
		})
	}

	table, err := pterm.DefaultTable.WithHasHeader(true).WithData(data).Srender()
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString(table)
	builder.WriteString(fmt.Sprintf("\n共 %d 个脚本，失败 %d 个\n", len(results), failed))
	return builder.String(), nil
}

func (of *OutputFormatter) detailTable(r model.ScriptResult) (string, error) {
	if r.Record == nil {
		return fmt.Sprintf("%s: 读取失败: %s\n", r.Path, r.Error), nil
	}

	values := r.Record.ToMap(of.pretty)
	data := pterm.TableData{{"字段", "值"}}
	for _, key := range model.ExportKeys(of.pretty) {
		cell := flatten(values[key])
		if cell == "" || cell == "0" {
			continue
		}
		data = append(data, []string{key, truncate(cell, 100)})
	}
	if r.Scores.Severity != "" {
		data = append(data, []string{"severity", fmt.Sprintf("%s (%s)", r.Scores.Severity, r.Scores.ScoredFrom)})
	}

	table, err := pterm.DefaultTable.WithHasHeader(true).WithData(data).Srender()
	if err != nil {
		return "", err
	}
	return r.Path + "\n" + table + "\n", nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
