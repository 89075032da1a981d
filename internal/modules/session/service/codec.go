package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"pve_client/pkg/exception"
)

// Engine.IO v4 типы пакетов
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
)

// Socket.IO v5 типы пакетов (внутри eioMessage)
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioAck          = '3'
	sioConnectError = '4'
)

// frame — разобранный текстовый кадр.
type frame struct {
	eio byte
	sio byte // только для eioMessage
	ns  string
	// data — JSON-хвост кадра (handshake, массив события, ошибка коннекта)
	data []byte
}

// handshake — payload пакета open.
type handshake struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"` // ms
	PingTimeout  int    `json:"pingTimeout"`  // ms
}

// deadline — сколько ждать следующего кадра, прежде чем считать соединение мёртвым.
func (h handshake) deadline() time.Duration {
	d := time.Duration(h.PingInterval+h.PingTimeout) * time.Millisecond
	if d <= 0 {
		return 60 * time.Second
	}
	return d
}

func decodeFrame(msg []byte) (frame, error) {
	if len(msg) == 0 {
		return frame{}, fmt.Errorf("%w: empty frame", exception.ErrProtocol)
	}
	f := frame{eio: msg[0]}
	rest := msg[1:]

	switch f.eio {
	case eioOpen:
		f.data = rest
	case eioClose, eioPing, eioPong:
	case eioMessage:
		if len(rest) == 0 {
			return frame{}, fmt.Errorf("%w: empty message frame", exception.ErrProtocol)
		}
		f.sio = rest[0]
		rest = rest[1:]
		// бинарные вложения "51-..." не поддерживаются
		if len(rest) > 0 && rest[0] == '/' {
			ns, tail, ok := strings.Cut(string(rest), ",")
			if !ok {
				f.ns, rest = ns, nil
			} else {
				f.ns, rest = ns, []byte(tail)
			}
		}
		// id ack-а перед массивом события
		for len(rest) > 0 && rest[0] >= '0' && rest[0] <= '9' {
			rest = rest[1:]
		}
		f.data = rest
	default:
		return frame{}, fmt.Errorf("%w: unknown packet type %q", exception.ErrProtocol, f.eio)
	}
	return f, nil
}

func decodeHandshake(data []byte) (handshake, error) {
	var h handshake
	if err := sonic.Unmarshal(data, &h); err != nil {
		return h, fmt.Errorf("%w: handshake: %v", exception.ErrProtocol, err)
	}
	if h.SID == "" {
		return h, fmt.Errorf("%w: handshake without sid", exception.ErrProtocol)
	}
	return h, nil
}

// decodeEvent разбирает ["name", payload].
func decodeEvent(data []byte) (string, json.RawMessage, error) {
	var arr []json.RawMessage
	if err := sonic.Unmarshal(data, &arr); err != nil {
		return "", nil, fmt.Errorf("%w: event array: %v", exception.ErrProtocol, err)
	}
	if len(arr) == 0 {
		return "", nil, fmt.Errorf("%w: empty event", exception.ErrProtocol)
	}
	var name string
	if err := sonic.Unmarshal(arr[0], &name); err != nil {
		return "", nil, fmt.Errorf("%w: event name: %v", exception.ErrProtocol, err)
	}
	if len(arr) == 1 {
		return name, nil, nil
	}
	return name, arr[1], nil
}

// connectErrorMessage достаёт message из 44{...}.
func connectErrorMessage(data []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if len(data) == 0 || sonic.Unmarshal(data, &e) != nil || e.Message == "" {
		return "connection rejected by server"
	}
	return e.Message
}

func encodeConnect(ns string) []byte {
	if ns == "" || ns == "/" {
		return []byte("40")
	}
	return []byte("40" + ns + ",")
}
