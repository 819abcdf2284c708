// Package tunnel implements C4, the tunnel supervisor: it maintains one
// active SOCKS5 endpoint on a loopback port, backed by an SSH -D dynamic
// port forward to a configured remote host.
package tunnel

import (
	"encoding/json"
	"fmt"
	"os"
)

// entry is one row of the tunnel enumeration file (spec §4.2: "a file
// enumerating tunnel entries, each with remote host, SSH port, SSH user,
// local SOCKS port, path to a private key").
type entry struct {
	Name          string `json:"name"`
	RemoteSSHHost string `json:"remote_ssh_host"`
	RemoteSSHPort int    `json:"remote_ssh_port"`
	SSHUser       string `json:"ssh_user"`
	LocalPort     int    `json:"local_port"`
	SSHKeyPath    string `json:"ssh_key_path"`
}

// LoadEntries reads the JSON tunnel config file at path into a list of
// entries, each carrying its object key as Name. The list follows Go map
// iteration order, not the order of the keys in the file.
func LoadEntries(path string) ([]entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tunnel config: %w", err)
	}

	var raw map[string]entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing tunnel config: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("tunnel config %s has no entries", path)
	}

	entries := make([]entry, 0, len(raw))
	for name, e := range raw {
		e.Name = name
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("tunnel entry %q: %w", name, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (e entry) validate() error {
	if e.RemoteSSHHost == "" {
		return fmt.Errorf("remote_ssh_host is required")
	}
	if e.RemoteSSHPort == 0 {
		return fmt.Errorf("remote_ssh_port is required")
	}
	if e.SSHUser == "" {
		return fmt.Errorf("ssh_user is required")
	}
	if e.LocalPort == 0 {
		return fmt.Errorf("local_port is required")
	}
	if e.SSHKeyPath == "" {
		return fmt.Errorf("ssh_key_path is required")
	}
	return nil
}
