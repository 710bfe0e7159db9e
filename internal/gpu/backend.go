//go:build !nogpu

package gpu

import (
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// MaxPixels bounds the working-set size the GPU backend's 32-bit atomic
// channel-sum reduction can represent without overflow: 255*N fits in a
// uint32 for N <= 2^24.
const MaxPixels = 1 << 24

// Backend owns a standalone compute-capable GPU device and the compiled
// Lloyd dispatcher bound to it.
type Backend struct {
	instance   hal.Instance
	device     hal.Device
	queue      hal.Queue
	dispatcher *Dispatcher
}

// Open acquires a compute-capable GPU adapter and compiles the Lloyd
// pipeline against it: Vulkan backend, first instance, preferring a
// discrete or integrated GPU adapter over a software one.
func Open() (*Backend, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("vulkan backend not available")
	}

	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no GPU adapters found")
	}

	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}

	dispatcher := NewDispatcher(openDev.Device, openDev.Queue)
	if err := dispatcher.Init(); err != nil {
		return nil, fmt.Errorf("init lloyd pipeline: %w", err)
	}

	slogger().Info("colorcrunch gpu: device opened", "adapter", selected.Info.Name)

	return &Backend{
		instance:   instance,
		device:     openDev.Device,
		queue:      openDev.Queue,
		dispatcher: dispatcher,
	}, nil
}

// Close releases the compiled pipeline. The device and instance are not
// destroyed.
func (b *Backend) Close() {
	if b == nil {
		return
	}
	if b.dispatcher != nil {
		b.dispatcher.Close()
	}
}

// Run quantizes the working set via the GPU Lloyd iteration until drift
// falls to or below tolerance or maxIterations is reached. pixelChannels
// is the widened (0..255, as u32) R,G,B triples of the working set;
// initialCenters is the flat (R,G,B per cluster) seed produced by the
// shared initializer. Returns the converged centers in the same flat
// layout.
func (b *Backend) Run(pixelChannels []uint32, initialCenters []float32, numClusters int, tolerance float64, maxIterations int) ([]float32, error) {
	if numClusters > MaxClusters {
		return nil, fmt.Errorf("colorcrunch gpu: %d clusters exceeds MAX_CLUSTERS=%d", numClusters, MaxClusters)
	}
	numPixels := len(pixelChannels) / 3
	if numPixels > MaxPixels {
		return nil, fmt.Errorf("colorcrunch gpu: %d pixels exceeds bound %d", numPixels, MaxPixels)
	}

	bufs, err := b.dispatcher.allocate(pixelChannels, initialCenters, numClusters)
	if err != nil {
		return nil, err
	}
	defer b.dispatcher.destroyBuffers(bufs)

	centers := initialCenters
	for iter := 0; iter < maxIterations; iter++ {
		if err := b.dispatcher.dispatchOnce(bufs); err != nil {
			return nil, err
		}
		next, err := b.dispatcher.readCenters(bufs)
		if err != nil {
			return nil, err
		}

		delta := maxCenterDrift(centers, next, numClusters)
		centers = next
		slogger().Debug("colorcrunch gpu: lloyd iteration", "iter", iter, "drift", delta)
		if delta <= tolerance {
			break
		}
	}
	return centers, nil
}

func maxCenterDrift(prev, next []float32, numClusters int) float64 {
	delta := 0.0
	for k := 0; k < numClusters; k++ {
		dr := float64(next[k*3] - prev[k*3])
		dg := float64(next[k*3+1] - prev[k*3+1])
		db := float64(next[k*3+2] - prev[k*3+2])
		d := math.Sqrt(dr*dr + dg*dg + db*db)
		if d > delta {
			delta = d
		}
	}
	return delta
}
