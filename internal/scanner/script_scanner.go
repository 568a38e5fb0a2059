package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"NaslParser/internal/model"
	"NaslParser/internal/nasl"
	"NaslParser/internal/utils"
)

// DefaultExtensions 未指定扩展名时只扫描.nasl
var DefaultExtensions = []string{".nasl"}

type ScriptScanner struct {
	workers    int
	extensions []string
	parser     *nasl.ScriptParser
	logger     *utils.Logger
	verbose    bool
}

func NewScriptScanner(workers int, extensions []string, verbose bool) *ScriptScanner {
	if workers < 1 {
		workers = 1
	}
	return &ScriptScanner{
		workers:    workers,
		extensions: ParseExtensions(extensions),
		parser:     nasl.NewScriptParser(),
		logger:     utils.NewLogger("scanner"),
		verbose:    verbose,
	}
}

// ParseExtensions 统一为小写带点的形式，去重并排序
// 每一项也可以是逗号分隔的列表，如 "nasl,inc"
func ParseExtensions(extensions []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range extensions {
		for _, ext := range strings.Split(item, ",") {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			if seen[ext] {
				continue
			}
			seen[ext] = true
			out = append(out, ext)
		}
	}

	if len(out) == 0 {
		out = append(out, DefaultExtensions...)
	}
	sort.Strings(out)
	return out
}

// Extensions 当前扫描的扩展名
func (ss *ScriptScanner) Extensions() []string {
	out := make([]string, len(ss.extensions))
	copy(out, ss.extensions)
	return out
}

// Matches 文件扩展名是否在扫描范围内
func (ss *ScriptScanner) Matches(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range ss.extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// CollectScripts 收集root下所有匹配的脚本，root本身是文件时直接返回
// 以.开头的目录会被跳过
func (ss *ScriptScanner) CollectScripts(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("无法访问 %s: %w", root, err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			ss.logger.Warn("跳过 %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if ss.Matches(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("遍历目录 %s 失败: %w", root, err)
	}

	sort.Strings(paths)
	ss.logger.Info("在 %s 下找到 %d 个脚本", root, len(paths))
	return paths, nil
}

// ScanFile 读取并解析单个脚本，读取失败记录在结果的Error里
func (ss *ScriptScanner) ScanFile(path string) model.ScriptResult {
	start := time.Now()
	result := model.ScriptResult{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Error = err.Error()
		result.ParseDur = time.Since(start).String()
		ss.logger.Error("读取脚本失败 %s: %v", path, err)
		return result
	}

	result.Record = ss.parser.Parse(string(data))
	result.Scores = nasl.ScoreVectors(result.Record)
	result.ParseDur = time.Since(start).String()

	if ss.verbose {
		ss.logger.Info("解析 %s: id=%d, %d 个CVE, %d 条未识别语句",
			path, result.Record.ID, len(result.Record.CVEIDs), len(result.Record.Commands))
	}
	return result
}

// ConcurrentScan 并发解析，结果顺序与paths一致
// context取消时返回已完成的部分结果和ctx错误
func (ss *ScriptScanner) ConcurrentScan(ctx context.Context, paths []string) ([]model.ScriptResult, error) {
	results := make([]model.ScriptResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ss.workers)

	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = ss.ScanFile(path)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return completed(results), err
	}
	if err := ctx.Err(); err != nil {
		return completed(results), err
	}
	return results, nil
}

// completed 过滤掉没来得及执行的槽位
func completed(results []model.ScriptResult) []model.ScriptResult {
	var done []model.ScriptResult
	for _, r := range results {
		if r.Path != "" {
			done = append(done, r)
		}
	}
	return done
}
