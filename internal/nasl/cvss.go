package nasl

import (
	"strings"

	gocvss20 "github.com/pandatix/go-cvss/20"
	gocvss30 "github.com/pandatix/go-cvss/30"
	gocvss31 "github.com/pandatix/go-cvss/31"

	"NaslParser/internal/model"
)

// ScoreVectors 根据提取出的CVSS向量计算基础分，优先使用v3
// 字段为空时退回到 script_set_attribute 里的 cvss_vector / cvss3_vector
func ScoreVectors(record *model.ScriptRecord) model.CVSSScores {
	var scores model.CVSSScores
	if record == nil {
		scores.Severity = SeverityRating(0)
		return scores
	}

	v2 := record.CVSSBaseVector
	if v2 == "" {
		v2 = record.Attributes["cvss_vector"]
	}
	v3 := record.CVSS3BaseVector
	if v3 == "" {
		v3 = record.Attributes["cvss3_vector"]
	}

	scores.V2Score = CVSS2BaseScore(v2)
	scores.V3Score = CVSS3BaseScore(v3)

	switch {
	case scores.V3Score > 0:
		scores.Severity = SeverityRating(scores.V3Score)
		scores.ScoredFrom = "cvss3"
	case scores.V2Score > 0:
		scores.Severity = SeverityRating(scores.V2Score)
		scores.ScoredFrom = "cvss2"
	default:
		scores.Severity = SeverityRating(0)
	}
	return scores
}

// CVSS2BaseScore 接受 CVSS2#AV:N/... 或不带前缀的向量，解析失败返回0
func CVSS2BaseScore(vector string) float64 {
	vector = strings.TrimSpace(vector)
	vector = strings.TrimPrefix(vector, "CVSS2#")
	if vector == "" {
		return 0
	}
	cvss, err := gocvss20.ParseVector(vector)
	if err != nil {
		return 0
	}
	return cvss.BaseScore()
}

// CVSS3BaseScore 支持 CVSS:3.0 和 CVSS:3.1
func CVSS3BaseScore(vector string) float64 {
	vector = strings.TrimSpace(vector)
	switch {
	case strings.HasPrefix(vector, "CVSS:3.1/"):
		if cvss, err := gocvss31.ParseVector(vector); err == nil {
			return cvss.BaseScore()
		}
	case strings.HasPrefix(vector, "CVSS:3.0/"):
		if cvss, err := gocvss30.ParseVector(vector); err == nil {
			return cvss.BaseScore()
		}
	}
	return 0
}

// SeverityRating 分数对应的严重等级
func SeverityRating(score float64) string {
	switch {
	case score == 0:
		return "NONE"
	case score < 4.0:
		return "LOW"
	case score < 7.0:
		return "MEDIUM"
	case score < 9.0:
		return "HIGH"
	default:
		return "CRITICAL"
	}
}
