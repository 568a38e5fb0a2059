package scriptdb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"NaslParser/internal/model"
	"NaslParser/internal/utils"

	_ "github.com/mattn/go-sqlite3"
)

// ErrScriptNotFound 数据库中没有该路径的脚本
var ErrScriptNotFound = errors.New("脚本不存在")

type ScriptDatabase struct {
	db      *sql.DB
	path    string
	logger  *utils.Logger
	version *utils.VersionParser
}

func NewScriptDatabase(dbPath string) (*ScriptDatabase, error) {
	logger := utils.NewLogger("scriptdb")

	// 确保目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	sdb := &ScriptDatabase{
		db:      db,
		path:    dbPath,
		logger:  logger,
		version: utils.NewVersionParser(),
	}

	// 初始化表
	if err := sdb.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化数据表失败: %w", err)
	}

	return sdb, nil
}

func (sd *ScriptDatabase) initTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scripts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT UNIQUE NOT NULL,
		script_id INTEGER,
		name TEXT,
		family TEXT,
		category TEXT,
		version TEXT,
		cvss_base_vector TEXT,
		cvss3_base_vector TEXT,
		cvss_score REAL,
		severity TEXT,
		cvs_date TEXT,
		cvs_date_raw TEXT,
		record_json TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS script_refs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL,
		ref_type TEXT NOT NULL,
		ref_value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_script_family ON scripts(family);
	CREATE INDEX IF NOT EXISTS idx_ref_value ON script_refs(ref_type, ref_value);
	CREATE INDEX IF NOT EXISTS idx_ref_path ON script_refs(path);

	CREATE TABLE IF NOT EXISTS index_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		last_update TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		source TEXT,
		records_added INTEGER
	);
	`

	_, err := sd.db.Exec(schema)
	return err
}

// InsertScript 写入或替换一个脚本的解析结果
// 已存储的版本比新版本更高时跳过，返回false
func (sd *ScriptDatabase) InsertScript(path string, record *model.ScriptRecord, scores model.CVSSScores) (bool, error) {
	if record == nil {
		return false, fmt.Errorf("记录为空: %s", path)
	}

	var stored string
	err := sd.db.QueryRow("SELECT version FROM scripts WHERE path = ?", path).Scan(&stored)
	switch {
	case err == nil:
		if sd.isOlder(record.Version, stored) {
			sd.logger.WithField("path", path).Debug("跳过旧版本: %s < %s", record.Version, stored)
			return false, nil
		}
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("查询已有版本失败: %w", err)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("序列化记录失败: %w", err)
	}

	score := scores.V3Score
	if score == 0 {
		score = scores.V2Score
	}

	tx, err := sd.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO scripts
		(path, script_id, name, family, category, version,
		 cvss_base_vector, cvss3_base_vector, cvss_score, severity, cvs_date, cvs_date_raw, record_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		path, record.ID, record.Name, record.Family, record.Category, record.Version,
		record.CVSSBaseVector, record.CVSS3BaseVector, score, scores.Severity,
		record.CVSDate.String(), record.CVSDate.Raw, string(payload),
	)
	if err != nil {
		return false, err
	}

	if _, err = tx.Exec("DELETE FROM script_refs WHERE path = ?", path); err != nil {
		return false, err
	}

	for _, ref := range references(record) {
		_, err = tx.Exec(`
			INSERT INTO script_refs (path, ref_type, ref_value)
			VALUES (?, ?, ?)`,
			path, ref[0], ref[1],
		)
		if err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// isOlder 两者都带版本号时才比较
func (sd *ScriptDatabase) isOlder(incoming, stored string) bool {
	a := sd.version.NormalizeVersion(incoming)
	b := sd.version.NormalizeVersion(stored)
	if a == "" || b == "" {
		return false
	}
	return sd.version.CompareVersions(a, b) < 0
}

// references 记录里可以反查的漏洞编号
func references(record *model.ScriptRecord) [][2]string {
	var refs [][2]string
	for _, id := range record.CVEIDs {
		refs = append(refs, [2]string{"cve", id})
	}
	for _, id := range record.CWEIDs {
		refs = append(refs, [2]string{"cwe", strconv.Itoa(id)})
	}
	for _, id := range record.BugtraqIDs {
		refs = append(refs, [2]string{"bugtraq", strconv.Itoa(id)})
	}
	for _, id := range record.OSVDBIDs {
		refs = append(refs, [2]string{"osvdb", strconv.Itoa(id)})
	}
	return refs
}

// GetScript 读取完整记录
// record_json里的日期是格式化后的文本，原始的 $Date: ... $ 从cvs_date_raw恢复
func (sd *ScriptDatabase) GetScript(path string) (*model.ScriptRecord, error) {
	var payload string
	var raw sql.NullString
	err := sd.db.QueryRow("SELECT record_json, cvs_date_raw FROM scripts WHERE path = ?", path).Scan(&payload, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, path)
	}
	if err != nil {
		return nil, err
	}

	record := model.NewScriptRecord()
	if err := json.Unmarshal([]byte(payload), record); err != nil {
		return nil, fmt.Errorf("解析记录失败 %s: %w", path, err)
	}
	if raw.Valid && raw.String != "" {
		record.CVSDate.Raw = raw.String
	}
	return record, nil
}

// HasData 检查数据库中是否有数据
func (sd *ScriptDatabase) HasData() (bool, error) {
	count, err := sd.GetScriptCount()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetScriptCount 获取脚本总数
func (sd *ScriptDatabase) GetScriptCount() (int, error) {
	var count int
	err := sd.db.QueryRow("SELECT COUNT(*) FROM scripts").Scan(&count)
	return count, err
}

// RecordIndexRun 记录一次索引
func (sd *ScriptDatabase) RecordIndexRun(source string, recordsAdded int) error {
	_, err := sd.db.Exec(`
		INSERT INTO index_history (source, records_added)
		VALUES (?, ?)`,
		source, recordsAdded,
	)
	if err != nil {
		return fmt.Errorf("记录索引历史失败: %w", err)
	}

	sd.logger.Info("索引 %s 完成，新增/更新 %d 个脚本", source, recordsAdded)
	return nil
}

// GetIndexHistory 获取最近10次索引历史
func (sd *ScriptDatabase) GetIndexHistory() ([]map[string]interface{}, error) {
	rows, err := sd.db.Query(`
		SELECT id, last_update, source, records_added
		FROM index_history
		ORDER BY id DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []map[string]interface{}
	for rows.Next() {
		var id, recordsAdded int
		var lastUpdate, source string

		if err := rows.Scan(&id, &lastUpdate, &source, &recordsAdded); err != nil {
			continue
		}

		history = append(history, map[string]interface{}{
			"id":            id,
			"last_update":   lastUpdate,
			"source":        source,
			"records_added": recordsAdded,
		})
	}

	return history, rows.Err()
}

func (sd *ScriptDatabase) Close() error {
	return sd.db.Close()
}
