package service

import (
	"fmt"
	"strings"
	"sync"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notifier — пользовательские уведомления (вместо тостов в UI).
type Notifier interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// Log пишет уведомления в zap.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{log: log.Named("notify")}
}

func (l *Log) Info(msg string)  { l.log.Info(msg) }
func (l *Log) Warn(msg string)  { l.log.Warn(msg) }
func (l *Log) Error(msg string) { l.log.Error(msg) }

// Sender — часть *tgbot.BotAPI, через которую шлём сообщения.
type Sender interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
}

// Telegram шлёт уведомления в один чат. Info не шлёт, если quiet.
type Telegram struct {
	bot    Sender
	chatID int64
	quiet  bool
	log    *zap.Logger
}

func NewTelegram(token string, chatID int64, log *zap.Logger) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return NewTelegramWithSender(b, chatID, log), nil
}

func NewTelegramWithSender(bot Sender, chatID int64, log *zap.Logger) *Telegram {
	if log == nil {
		log = zap.NewNop()
	}
	return &Telegram{bot: bot, chatID: chatID, log: log.Named("telegram")}
}

// Quiet отключает Info-сообщения, остаются Warn и Error.
func (t *Telegram) Quiet(v bool) *Telegram {
	t.quiet = v
	return t
}

func (t *Telegram) Info(msg string) {
	if t.quiet {
		return
	}
	t.send(LevelInfo, msg)
}

func (t *Telegram) Warn(msg string)  { t.send(LevelWarn, msg) }
func (t *Telegram) Error(msg string) { t.send(LevelError, msg) }

func (t *Telegram) send(level Level, msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, format(level, msg))); err != nil {
		t.log.Warn("send failed", zap.Error(err))
	}
}

func format(level Level, msg string) string {
	msg = strings.TrimSpace(msg)
	switch level {
	case LevelWarn:
		return "⚠️ " + msg
	case LevelError:
		return "❗️ " + msg
	default:
		return "ℹ️ " + msg
	}
}

// Multi рассылает во все нотифайеры по порядку.
type Multi []Notifier

func (m Multi) Info(msg string) {
	for _, n := range m {
		n.Info(msg)
	}
}

func (m Multi) Warn(msg string) {
	for _, n := range m {
		n.Warn(msg)
	}
}

func (m Multi) Error(msg string) {
	for _, n := range m {
		n.Error(msg)
	}
}

// Record — одно сообщение в Memory.
type Record struct {
	Level Level
	Text  string
}

// Memory копит уведомления; для CLI-сводки и тестов.
type Memory struct {
	mu   sync.Mutex
	list []Record
}

func (m *Memory) Info(msg string)  { m.add(LevelInfo, msg) }
func (m *Memory) Warn(msg string)  { m.add(LevelWarn, msg) }
func (m *Memory) Error(msg string) { m.add(LevelError, msg) }

func (m *Memory) add(level Level, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = append(m.list, Record{Level: level, Text: msg})
}

func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.list...)
}
