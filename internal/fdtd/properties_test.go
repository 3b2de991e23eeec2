package fdtd_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/compute"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/fdtd"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/field"
)

var _ = Describe("a continuously driven point source", func() {
	const (
		gridN = 64
		steps = 320
	)

	var sim *fdtd.Simulation

	sample := func(u, v float32) fdtd.Sample {
		GinkgoHelper()
		s, err := sim.SampleFieldAt(context.Background(), u, v)
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	// at offsets the grid center by whole cells, in normalized units.
	at := func(dx, dy int) (float32, float32) {
		return 0.5 + float32(dx)/gridN, 0.5 + float32(dy)/gridN
	}

	BeforeEach(func() {
		p := fdtd.Params{
			Width:        gridN,
			Height:       gridN,
			CellSize:     0.01,
			Dt:           0.001,
			Boundary:     compute.BoundaryOpen,
			DecayDecades: 3,
		}
		var err error
		sim, err = fdtd.New(p, compute.NewCPUBackend())
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < steps; i++ {
			sim.InjectSource(0.5, 0.5, 1.0/gridN, 1.0/gridN, field.Vec3{Z: 1}, false)
			sim.Step()
		}
	})

	AfterEach(func() {
		sim.Close()
	})

	It("peaks at the injection cell", func() {
		center := sample(0.5, 0.5).Magnitude
		Expect(center).To(BeNumerically(">", 0))

		for _, n := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			u, v := at(n[0], n[1])
			Expect(sample(u, v).Magnitude).To(BeNumerically("<=", center*1.2))
		}
	})

	It("falls off monotonically with radius", func() {
		u2, v2 := at(2, 0)
		u3, v3 := at(3, 0)
		u4, v4 := at(4, 0)
		m2 := sample(u2, v2).Magnitude
		m3 := sample(u3, v3).Magnitude
		m4 := sample(u4, v4).Magnitude

		Expect(m2).To(BeNumerically(">", 0))
		Expect(m3).To(BeNumerically("<=", m2))
		Expect(m4).To(BeNumerically("<=", m3))
		Expect(m4).To(BeNumerically("<", m2))
	})

	It("approximates inverse-square falloff within a wide tolerance", func() {
		u2, v2 := at(2, 0)
		u4, v4 := at(4, 0)
		m2 := float64(sample(u2, v2).Magnitude)
		m4 := float64(sample(u4, v4).Magnitude)
		Expect(m4).To(BeNumerically(">", 0))

		// Doubling the radius should quarter the magnitude, give or take the
		// substantial discretization error of a coarse lattice.
		Expect(m2 / m4).To(BeNumerically("~", 4, 2.4))
	})

	It("stays radially symmetric within discretization error", func() {
		points := [][2]int{{2, 0}, {-2, 0}, {0, 2}, {0, -2}}

		var mags []float64
		var mean float64
		for _, pt := range points {
			u, v := at(pt[0], pt[1])
			m := float64(sample(u, v).Magnitude)
			mags = append(mags, m)
			mean += m / float64(len(points))
		}

		for _, m := range mags {
			Expect(m).To(BeNumerically("~", mean, mean*0.4))
		}
	})
})

var _ = Describe("the reference scene", func() {
	It("produces a sharply localized field after one step", func() {
		sim, err := fdtd.New(fdtd.DefaultParams(), compute.NewCPUBackend())
		Expect(err).NotTo(HaveOccurred())
		defer sim.Close()

		sim.InjectSource(0.5, 0.5, 1.0/128, 1.0/128, field.Vec3{Z: 1}, false)
		sim.Step()

		center, err := sim.SampleFieldAt(context.Background(), 0.5, 0.5)
		Expect(err).NotTo(HaveOccurred())
		Expect(center.Ez).NotTo(BeZero())

		far, err := sim.SampleFieldAt(context.Background(), 0.05, 0.05)
		Expect(err).NotTo(HaveOccurred())
		Expect(far.Magnitude).To(BeNumerically("<=", center.Magnitude/10))
	})
})
