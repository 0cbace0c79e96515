// Package models holds the request and response bodies of the control API.
package models

import (
	"time"

	"github.com/smazurov/framereactor/internal/devices"
)

type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Release version"`
	GitCommit string `json:"git_commit" doc:"Source revision"`
	BuildDate string `json:"build_date" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target OS and architecture"`
}

type VersionResponse struct {
	Body VersionData
}

// FormatData is a negotiated capture format.
type FormatData struct {
	Width        int    `json:"width" example:"1280"`
	Height       int    `json:"height" example:"720"`
	FPS          int    `json:"fps" example:"30"`
	PixelFormat  string `json:"pixel_format" example:"YUYV"`
	BytesPerLine int    `json:"bytes_per_line"`
	SizeImage    int    `json:"size_image"`
}

type RingData struct {
	Slots     int    `json:"slots" doc:"Mapped buffers"`
	Queued    int    `json:"queued" doc:"Buffers owned by the driver"`
	Filled    int    `json:"filled" doc:"Buffers held by the application"`
	Delivered uint64 `json:"delivered" doc:"Frames dequeued"`
	NotReady  uint64 `json:"not_ready" doc:"Dequeue attempts with no frame"`
	Recovered uint64 `json:"recovered" doc:"Frames skipped after I/O errors"`
}

type PipelineData struct {
	ID           string     `json:"id" example:"cam0" doc:"Pipeline id from the device list"`
	RunID        string     `json:"run_id,omitempty" doc:"Id of the current run"`
	Device       string     `json:"device,omitempty" example:"/dev/video0" doc:"Resolved device node"`
	State        string     `json:"state" enum:"idle,starting,running,stopping,error"`
	StartedAt    time.Time  `json:"started_at,omitempty"`
	RestartCount int        `json:"restart_count"`
	LastError    string     `json:"last_error,omitempty"`
	Format       FormatData `json:"format"`
	Output       string     `json:"output_format,omitempty" example:"BGR3"`
	Ring         RingData   `json:"ring"`
	QueueDepth   int        `json:"queue_depth"`
	Captured     uint64     `json:"captured" doc:"Frames taken from the device across runs"`
	CaptureErrs  uint64     `json:"capture_errors" doc:"Capture errors across runs"`
	Transforms   uint64     `json:"transform_errors" doc:"Failed conversions across runs"`
	Dropped      uint64     `json:"dropped" doc:"Packets evicted from the handoff queue"`
	Written      uint64     `json:"written" doc:"Packets written to the sink"`
}

type PipelineListData struct {
	Pipelines []PipelineData `json:"pipelines"`
	Count     int            `json:"count" example:"2"`
}

type PipelineListResponse struct {
	Body PipelineListData
}

type PipelineResponse struct {
	Body PipelineData
}

type PipelineRequest struct {
	ID string `path:"id" example:"cam0" doc:"Pipeline id"`
}

type PipelineActionData struct {
	ID     string `json:"id"`
	Action string `json:"action" enum:"start,stop,restart"`
}

type PipelineActionResponse struct {
	Body PipelineActionData
}

type DeviceListRequest struct {
	Modes bool `query:"modes" doc:"Include resolutions and frame rates"`
}

type DeviceListData struct {
	Devices []devices.Device `json:"devices"`
	Count   int              `json:"count"`
}

type DeviceListResponse struct {
	Body DeviceListData
}

type LogLevelData struct {
	Module string `json:"module" example:"capture"`
	Level  string `json:"level" example:"debug" doc:"debug, info, warn or error"`
}

type LogLevelRequest struct {
	Module string `path:"module" example:"capture" doc:"Logger module, or global"`
	Body   struct {
		Level string `json:"level" example:"debug" minLength:"1"`
	}
}

type LogLevelResponse struct {
	Body LogLevelData
}
