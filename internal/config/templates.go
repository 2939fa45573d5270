package config

import (
	"fmt"
	"os"
)

const serverTemplate = `name = "mcscid"
listen = ":7908"
stdio = false
max_line_bytes = 65536
log_level = "info"
extensions = ["seedcrack"]
`

const clientTemplate = `addr = "127.0.0.1:7908"
connect_retries = 3
`

// WriteServerTemplate writes a starter server config, refusing to clobber
// an existing file.
func WriteServerTemplate(path string) error {
	return writeTemplate(path, serverTemplate)
}

// WriteClientTemplate writes a starter client config.
func WriteClientTemplate(path string) error {
	return writeTemplate(path, clientTemplate)
}

func writeTemplate(path, body string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config template: %s already exists", path)
	}
	return os.WriteFile(path, []byte(body), 0o644)
}
