// Package handlers implements the HTTP and websocket API.
package handlers

import (
	"github.com/dragonzzuny/cctv-monitoring-system/internal/alarm"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/stream"
)

var (
	streamHub *stream.Hub
	alarmHub  *alarm.Hub
	jwtSecret []byte
)

// Init wires the handler package to its collaborators
func Init(sh *stream.Hub, ah *alarm.Hub, secret string) {
	streamHub = sh
	alarmHub = ah
	jwtSecret = []byte(secret)
}
