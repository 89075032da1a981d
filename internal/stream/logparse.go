// Package stream превращает сырые payload'ы сессии в структурированные записи.
// Ошибки разбора здесь не пробрасываются наружу: вход деградирует до fallback.
package stream

import (
	"regexp"
	"strings"
	"time"

	"pve_client/internal/models"
)

const (
	defaultLevel = "INFO"
	logTimestamp = "2006-01-02 15:04:05"
)

// <YYYY-MM-DD HH:MM:SS,mmm> - <source> - <level> - <message>
var logLineRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2},\d+) - (.*?) - (.*?) - (.*)$`)

// ParseLogLine никогда не паникует и не возвращает ошибку.
// Не совпало с грамматикой → {now, INFO, line}; битая дата → {now, level, message}.
func ParseLogLine(line string, now time.Time) models.LogRecord {
	return parseLogLine(line, now, time.Local)
}

func parseLogLine(line string, now time.Time, loc *time.Location) models.LogRecord {
	m := logLineRe.FindStringSubmatch(line)
	if m == nil {
		return models.LogRecord{Timestamp: now, Level: defaultLevel, Message: line}
	}

	rec := models.LogRecord{Timestamp: now, Level: m[3], Message: m[4]}
	ts, err := time.ParseInLocation(logTimestamp, strings.Replace(m[1], ",", ".", 1), loc)
	if err == nil {
		rec.Timestamp = ts
	}
	return rec
}
