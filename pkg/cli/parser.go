package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"NaslParser/internal/config"
	"NaslParser/internal/model"
	"NaslParser/internal/utils"
)

type Parser struct {
	Options model.ScanOptions
	Config  *config.Config

	root   *cobra.Command
	loader *config.ConfigLoader
	logger *utils.Logger
}

func NewParser() *Parser {
	p := &Parser{
		loader: config.NewConfigLoader("", config.DefaultEnvPrefix),
		logger: utils.NewLogger("cli"),
	}

	p.root = &cobra.Command{
		Use:   "naslparser",
		Short: "NASL 漏洞检测脚本元数据提取工具",
		Long: `naslparser 从 NASL 脚本源码中提取结构化元数据:
脚本ID、名称、家族、CVE/CWE/Bugtraq/OSVDB 编号、CVSS 向量、属性、检查条件以及未识别的语句。

示例:
  naslparser parse ssh_detect.nasl --format text
  naslparser parse plugins/ --format yaml --pretty -o result.yaml
  naslparser index plugins/ --db database/nasl_scripts.db
  naslparser lookup CVE-2021-44228
  naslparser watch plugins/ --index`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return p.loadConfig()
		},
	}

	flags := p.root.PersistentFlags()
	flags.StringVar(&p.Options.ConfigFile, "config", "", "配置文件路径 (默认: ./configs/naslparser.yaml)")
	flags.String("log-level", "", "日志级别 (debug, info, warn, error)")
	flags.String("db", "", "脚本索引数据库路径")
	flags.StringP("format", "f", "", "输出格式 (json, yaml, csv, text)")
	flags.Bool("pretty", false, "使用展示用键名输出")
	flags.StringVarP(&p.Options.OutputFile, "output", "o", "", "输出文件")
	flags.IntP("workers", "w", 0, "并发解析数")
	flags.StringSlice("ext", nil, "扫描的脚本扩展名 (如: nasl,inc)")
	flags.BoolVarP(&p.Options.Verbose, "verbose", "v", false, "显示详细信息")

	v := p.loader.Viper()
	v.BindPFlag("log.level", flags.Lookup("log-level"))
	v.BindPFlag("database.path", flags.Lookup("db"))
	v.BindPFlag("output.format", flags.Lookup("format"))
	v.BindPFlag("output.pretty", flags.Lookup("pretty"))
	v.BindPFlag("scanner.workers", flags.Lookup("workers"))
	v.BindPFlag("scanner.extensions", flags.Lookup("ext"))

	p.root.AddCommand(p.newParseCmd())
	p.root.AddCommand(p.newIndexCmd())
	p.root.AddCommand(p.newLookupCmd())
	p.root.AddCommand(p.newHistoryCmd())
	p.root.AddCommand(p.newWatchCmd())

	return p
}

// SetArgs 替换命令行参数，测试使用
func (p *Parser) SetArgs(args []string) {
	p.root.SetArgs(args)
}

// Parse 解析命令行并执行对应子命令
func (p *Parser) Parse() error {
	return p.ParseContext(context.Background())
}

func (p *Parser) ParseContext(ctx context.Context) error {
	return p.root.ExecuteContext(ctx)
}

// loadConfig 合并配置文件、环境变量和flag，并初始化日志
func (p *Parser) loadConfig() error {
	p.loader.SetConfigFile(p.Options.ConfigFile)

	cfg, err := p.loader.LoadConfig()
	if err != nil {
		return err
	}

	if p.Options.Verbose && !p.root.PersistentFlags().Changed("log-level") {
		cfg.Log.Level = "debug"
	}
	if err := utils.InitLogging(cfg.Log); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}

	p.Config = cfg
	p.Options.DBPath = cfg.Database.Path
	p.Options.Workers = cfg.Scanner.Workers
	p.Options.Extensions = strings.Join(cfg.Scanner.Extensions, ",")
	p.Options.OutputFormat = cfg.Output.Format
	p.Options.Pretty = cfg.Output.Pretty

	p.logger.Debug("配置加载完成: db=%s, workers=%d, ext=%s, format=%s",
		p.Options.DBPath, p.Options.Workers, p.Options.Extensions, p.Options.OutputFormat)
	return nil
}

func (p *Parser) formatter() *OutputFormatter {
	return NewOutputFormatter(p.Options.OutputFormat, p.Options.Pretty)
}
