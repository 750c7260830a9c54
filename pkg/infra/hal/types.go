package hal

const (
	VendorNVIDIA  = "NVIDIA"
	VendorAMD     = "AMD"
	VendorIntel   = "Intel"
	VendorApple   = "Apple"
	VendorUnknown = "Unknown"
)

// CPUInfo describes the host processor. Cores counts logical CPUs.
type CPUInfo struct {
	Name   string `json:"name"`
	Vendor string `json:"vendor,omitempty"`
	Cores  int    `json:"cores"`
}
