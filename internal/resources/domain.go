// Package resources defines the closed set of chargeable resource types.
package resources

import "fmt"

// Type classifies a resource by the kind of consumption it accrues.
type Type string

// Known resource types.
const (
	TypeHPC     Type = "HPC"
	TypeDAV     Type = "DAV"
	TypeDisk    Type = "DISK"
	TypeArchive Type = "ARCHIVE"
)

// Resource identifies a chargeable facility a project can hold an account on.
type Resource struct {
	ID   int64
	Name string
	Type Type
}

// ParseType validates a stored resource type value.
func ParseType(value string) (Type, error) {
	switch Type(value) {
	case TypeHPC, TypeDAV, TypeDisk, TypeArchive:
		return Type(value), nil
	}
	return "", fmt.Errorf("resources: unknown resource type %q", value)
}

// SupportsJobStats reports whether the type records job counts and core-hours.
func (t Type) SupportsJobStats() bool {
	return t == TypeHPC || t == TypeDAV
}
