package infra

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

const hostsHeader = "# Managed by focusmode. Changes are overwritten on mode switch."

// MinimalHosts returns the loopback and broadcast entries every hosts file keeps.
func MinimalHosts(goos string) []domain.HostEntry {
	entries := []domain.HostEntry{
		{Address: "127.0.0.1", Hostnames: []string{"localhost"}},
		{Address: "255.255.255.255", Hostnames: []string{"broadcasthost"}},
		{Address: "::1", Hostnames: []string{"localhost"}},
	}
	if goos == "darwin" {
		entries = append(entries, domain.HostEntry{Address: "fe80::1%lo0", Hostnames: []string{"localhost"}})
	}
	return entries
}

// ParseHosts reads hosts-file formatted content. Comments and blank lines are skipped.
func ParseHosts(r io.Reader) (*domain.BlockTable, error) {
	table := &domain.BlockTable{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		table.Entries = append(table.Entries, domain.HostEntry{
			Address:   fields[0],
			Hostnames: fields[1:],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

// FormatHosts renders the managed hosts file for goos: header, minimal entries, then the table.
func FormatHosts(goos string, table *domain.BlockTable) []byte {
	var buf bytes.Buffer
	buf.WriteString(hostsHeader + "\n")
	writeEntries(&buf, MinimalHosts(goos))
	if table != nil && len(table.Entries) > 0 {
		buf.WriteString("\n# Blocked\n")
		writeEntries(&buf, table.Entries)
	}
	return buf.Bytes()
}

// FormatBlockTable renders just the table, the on-disk format of a mode's hosts file.
func FormatBlockTable(table *domain.BlockTable) []byte {
	var buf bytes.Buffer
	if table != nil {
		writeEntries(&buf, table.Entries)
	}
	return buf.Bytes()
}

func writeEntries(w io.Writer, entries []domain.HostEntry) {
	for _, e := range entries {
		if len(e.Hostnames) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", e.Address, strings.Join(e.Hostnames, " "))
	}
}
