package utils

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// OpenVAS 脚本用时间戳作为版本: 2021-04-20T12:00:00+0000
	timestampVersion = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:[T ](\d{2}):(\d{2}):(\d{2}))?`)
	dottedVersion    = regexp.MustCompile(`\d+(?:\.\d+)*`)
	leadingDigits    = regexp.MustCompile(`\d+`)
)

// VersionParser 脚本版本号解析器
type VersionParser struct{}

func NewVersionParser() *VersionParser {
	return &VersionParser{}
}

// NormalizeVersion 标准化版本号
// "$Revision: 1.5 $" -> "1.5"，"2021-04-20T12:00:00+0000" -> "2021.04.20.12.00.00"
func (vp *VersionParser) NormalizeVersion(version string) string {
	version = strings.TrimSpace(strings.Trim(strings.TrimSpace(version), "$"))
	for _, prefix := range []string{"Revision:", "Revision", "version", "Version", "v", "V"} {
		if strings.HasPrefix(version, prefix) {
			version = strings.TrimSpace(strings.TrimPrefix(version, prefix))
			break
		}
	}

	if m := timestampVersion.FindStringSubmatch(version); m != nil {
		var parts []string
		for _, part := range m[1:] {
			if part != "" {
				parts = append(parts, part)
			}
		}
		return strings.Join(parts, ".")
	}

	if match := dottedVersion.FindString(version); match != "" {
		return match
	}
	return version
}

// CompareVersions 比较版本号，返回 1 / 0 / -1
func (vp *VersionParser) CompareVersions(v1, v2 string) int {
	parts1 := strings.Split(v1, ".")
	parts2 := strings.Split(v2, ".")

	maxLen := len(parts1)
	if len(parts2) > maxLen {
		maxLen = len(parts2)
	}

	for i := 0; i < maxLen; i++ {
		var num1, num2 int

		if i < len(parts1) {
			num1 = vp.parsePart(parts1[i])
		}

		if i < len(parts2) {
			num2 = vp.parsePart(parts2[i])
		}

		if num1 > num2 {
			return 1
		}
		if num1 < num2 {
			return -1
		}
	}

	return 0
}

func (vp *VersionParser) parsePart(part string) int {
	// 提取数字部分
	match := leadingDigits.FindString(part)
	if match == "" {
		return 0
	}

	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}
