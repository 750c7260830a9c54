//go:build !darwin

package generic

func platformCPUName() string {
	return ""
}
