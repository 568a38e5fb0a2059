package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"NaslParser/internal/model"
	"NaslParser/internal/scanner"
	"NaslParser/internal/scriptdb"
)

func (p *Parser) newScanner() *scanner.ScriptScanner {
	return scanner.NewScriptScanner(p.Options.Workers, []string{p.Options.Extensions}, p.Options.Verbose)
}

// scanTargets 参数可以是文件也可以是目录
func (p *Parser) scanTargets(ctx context.Context, ss *scanner.ScriptScanner, targets []string) ([]model.ScriptResult, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, target := range targets {
		found, err := ss.CollectScripts(target)
		if err != nil {
			return nil, err
		}
		for _, path := range found {
			if !seen[path] {
				seen[path] = true
				paths = append(paths, path)
			}
		}
	}

	start := time.Now()
	results, err := ss.ConcurrentScan(ctx, paths)
	if err != nil {
		return results, fmt.Errorf("扫描中断: %w", err)
	}
	p.logger.Info("解析 %d 个脚本，耗时 %v", len(results), time.Since(start))
	return results, nil
}

func (p *Parser) newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file|dir>...",
		Short: "解析脚本并输出元数据",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := p.scanTargets(cmd.Context(), p.newScanner(), args)
			if err != nil {
				return err
			}
			return p.formatter().PrintResults(results, p.Options.OutputFile)
		},
	}
}

func (p *Parser) openDatabase() (*scriptdb.ScriptDatabase, error) {
	db, err := scriptdb.NewScriptDatabase(p.Options.DBPath)
	if err != nil {
		return nil, fmt.Errorf("初始化脚本数据库失败: %w", err)
	}
	return db, nil
}

// store 写入数据库，返回写入数量和因旧版本跳过的数量
func (p *Parser) store(db *scriptdb.ScriptDatabase, results []model.ScriptResult) (stored, skipped, failed int) {
	for _, r := range results {
		if r.Record == nil {
			failed++
			continue
		}
		ok, err := db.InsertScript(r.Path, r.Record, r.Scores)
		switch {
		case err != nil:
			failed++
			p.logger.Error("写入 %s 失败: %v", r.Path, err)
		case ok:
			stored++
		default:
			skipped++
		}
	}
	return stored, skipped, failed
}

func (p *Parser) newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <dir>",
		Short: "解析目录下的脚本并写入索引数据库",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := p.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			results, err := p.scanTargets(cmd.Context(), p.newScanner(), args)
			if err != nil {
				return err
			}

			stored, skipped, failed := p.store(db, results)
			if err := db.RecordIndexRun(args[0], stored); err != nil {
				return err
			}

			total, err := db.GetScriptCount()
			if err != nil {
				return err
			}
			pterm.Success.Printfln("索引完成: 写入 %d, 跳过旧版本 %d, 失败 %d, 库中共 %d 个脚本",
				stored, skipped, failed, total)
			return nil
		},
	}
}

func (p *Parser) newLookupCmd() *cobra.Command {
	var family string

	cmd := &cobra.Command{
		Use:   "lookup [CVE-ID]",
		Short: "按CVE编号或脚本家族查询已索引的脚本",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && family == "" {
				return errors.New("必须指定CVE编号或 --family")
			}

			db, err := p.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			hasData, err := db.HasData()
			if err != nil {
				return err
			}
			if !hasData {
				p.logger.Warn("数据库 %s 为空，请先执行 index", p.Options.DBPath)
			}

			var summaries []model.ScriptSummary
			if len(args) == 1 {
				summaries, err = db.LookupByCVE(args[0])
			} else {
				summaries, err = db.LookupByFamily(family)
			}
			if err != nil {
				return fmt.Errorf("查询失败: %w", err)
			}
			return p.formatter().PrintSummaries(summaries, p.Options.OutputFile)
		},
	}

	cmd.Flags().StringVar(&family, "family", "", "按脚本家族查询")
	return cmd
}

func (p *Parser) newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "显示最近的索引记录",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := p.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			history, err := db.GetIndexHistory()
			if err != nil {
				return fmt.Errorf("读取索引历史失败: %w", err)
			}
			if len(history) == 0 {
				fmt.Println("暂无索引记录")
				return nil
			}

			data := pterm.TableData{{"ID", "时间", "来源", "写入数量"}}
			for _, h := range history {
				data = append(data, []string{
					strconv.Itoa(h["id"].(int)),
					fmt.Sprint(h["last_update"]),
					fmt.Sprint(h["source"]),
					strconv.Itoa(h["records_added"].(int)),
				})
			}
			return pterm.DefaultTable.WithHasHeader(true).WithData(data).Render()
		},
	}
}

func (p *Parser) newWatchCmd() *cobra.Command {
	var index bool

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "监听目录，脚本变化时重新解析",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var db *scriptdb.ScriptDatabase
			if index {
				var err error
				if db, err = p.openDatabase(); err != nil {
					return err
				}
				defer db.Close()
			}

			watcher, err := scanner.NewWatcher(args[0], p.newScanner(), p.Config.Scanner.WatchDelay)
			if err != nil {
				return err
			}

			output := newWatchOutput(p.formatter(), p.Options.OutputFile)
			return watcher.Run(ctx, func(result model.ScriptResult) {
				if db != nil {
					if stored, _, _ := p.store(db, []model.ScriptResult{result}); stored > 0 {
						if err := db.RecordIndexRun(result.Path, stored); err != nil {
							p.logger.Error("%v", err)
						}
					}
				}
				if err := output.write(result); err != nil {
					p.logger.Error("输出结果失败: %v", err)
				}
			})
		},
	}

	cmd.Flags().BoolVar(&index, "index", false, "同时写入索引数据库")
	return cmd
}

// watchOutput 监听期间的输出
// 写文件时保留每个脚本的最新结果并整体重写，文件始终是完整的一份
type watchOutput struct {
	formatter *OutputFormatter
	path      string
	latest    map[string]model.ScriptResult
}

func newWatchOutput(formatter *OutputFormatter, path string) *watchOutput {
	return &watchOutput{formatter: formatter, path: path, latest: make(map[string]model.ScriptResult)}
}

func (w *watchOutput) write(result model.ScriptResult) error {
	if w.path == "" {
		return w.formatter.PrintResults([]model.ScriptResult{result}, "")
	}

	w.latest[result.Path] = result
	results := make([]model.ScriptResult, 0, len(w.latest))
	for _, r := range w.latest {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return w.formatter.PrintResults(results, w.path)
}
