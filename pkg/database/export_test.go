package database

import "github.com/hashicorp/go-version"

func (c *ClickHouse) SetServerVersion(v string) {
	c.version = version.Must(version.NewVersion(v))
}
