// Package vault implements the snapshot destinations a store can be
// published to.
package vault

import (
	"fmt"
	"path"
	"strings"
)

// validName rejects snapshot names that could escape the vault's namespace.
func validName(name string) error {
	if name == "" || name != path.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid snapshot name %q", name)
	}
	return nil
}
