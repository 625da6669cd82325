package main

import (
	"fmt"
	"math/rand"
	"os"

	"k8s.io/klog/v2"

	"go-attentiongan/autograd"
	"go-attentiongan/data"
	"go-attentiongan/imagepool"
	"go-attentiongan/losses"
	"go-attentiongan/model"
	"go-attentiongan/networks"
	"go-attentiongan/rotation"
	"go-attentiongan/tensor"
	"go-attentiongan/utility"
)

func main() {
	defer klog.Flush()
	rng := rand.New(rand.NewSource(42))

	fmt.Println("--> rotation batch")

	// 1. a single 1x1x2x2 image and its four rotations
	image, err := tensor.NewTensor([]int{1, 1, 2, 2}, []float64{1, 2, 3, 4})
	if err != nil {
		klog.Fatalf("Error creating image: %v", err)
	}
	rotated, err := rotation.Rotate(image)
	if err != nil {
		klog.Fatalf("Error rotating image: %v", err)
	}
	fmt.Printf("Image: %v\n", image)
	fmt.Printf("Rotation batch: %v\n", rotated)
	fmt.Printf("Rotation labels: %v\n", rotation.Labels(1))

	// 2. rotation classification loss of a perfect and a uniform classifier
	perfect, err := rotation.OneHotTargets(1, []int{4, rotation.NumClasses, 1, 1})
	if err != nil {
		klog.Fatalf("Error building targets: %v", err)
	}
	uniform, _ := tensor.FullLike(perfect, 0.25)
	perfectLoss, _ := losses.RotationClassificationLoss(1, perfect)
	uniformLoss, _ := losses.RotationClassificationLoss(1, uniform)
	fmt.Printf("Rotation loss (perfect): %.4f, (uniform): %.4f\n\n", perfectLoss.Item(), uniformLoss.Item())

	// -------------------- Image pool section -------------------- //

	fmt.Println("--> image pool")
	pool, err := imagepool.New(3, rng)
	if err != nil {
		klog.Fatalf("Error creating pool: %v", err)
	}
	for i := 0; i < 5; i++ {
		img, _ := tensor.NewTensor([]int{1, 1, 1, 1}, []float64{float64(i)})
		out, err := pool.Query(img)
		if err != nil {
			klog.Fatalf("Error querying pool: %v", err)
		}
		fmt.Printf("query %.0f -> %.0f (pool holds %d)\n", img.Item(), out.Item(), pool.Len())
	}
	fmt.Println()

	// ------------------- GAN losses section ------------- //

	fmt.Println("--> gan losses")
	prediction, _ := tensor.NewTensor([]int{1, 1, 2, 2}, []float64{0.9, 0.8, 0.1, 0.6})
	for _, mode := range []losses.GANMode{losses.LSGAN, losses.Vanilla, losses.WGANGP} {
		criterion, err := losses.NewGANLoss(mode)
		if err != nil {
			klog.Fatalf("Error creating %s loss: %v", mode, err)
		}
		realLoss, _ := criterion.Loss(prediction, true)
		fakeLoss, _ := criterion.Loss(prediction, false)
		fmt.Printf("%-8s real: %.4f fake: %.4f\n", mode, realLoss.Item(), fakeLoss.Item())
	}
	fmt.Println()

	// -------------- One training step ------------------ //

	fmt.Println("--> attentiongan training step on synthetic 8x8 images")
	cfg := networks.DefaultConfig()
	nets, err := networks.Build(cfg, true, rng)
	if err != nil {
		klog.Fatalf("Error building networks: %v", err)
	}
	utility.NewModelInspector(nets.GA.(utility.Network), nets.DA.(utility.Network)).Summary(os.Stdout)

	opts := model.DefaultOptions()
	opts.Name = "demo"
	gan, err := model.New(opts, nets, rng)
	if err != nil {
		klog.Fatalf("Error creating model: %v", err)
	}
	gan.SetPhaseHook(func(phase model.Phase, _ *model.StepContext) {
		fmt.Printf("  phase: %s (D has gradient: %v)\n", phase, autograd.HasGradient(nets.DA.Parameters()))
	})

	batch, err := data.Synthetic(2, cfg.InputNC, 8, rng)
	if err != nil {
		klog.Fatalf("Error creating batch: %v", err)
	}
	if err := gan.SetInput(batch); err != nil {
		klog.Fatalf("Error setting input: %v", err)
	}
	for step := 1; step <= 3; step++ {
		if err := gan.OptimizeParameters(); err != nil {
			klog.Fatalf("Error in step %d: %v", step, err)
		}
		fmt.Printf("step %d: %s\n", step, gan.CurrentLosses())
	}
	r := gan.RotationLosses()
	fmt.Printf("rotation losses: D_A %.4f D_B %.4f G_A %.4f G_B %.4f\n", r.DA, r.DB, r.GA, r.GB)
	fmt.Printf("visuals: %d images\n\n", len(gan.Visuals()))

	// -------------- Checkpoint round trip ------------------ //

	fmt.Println("--> checkpoint round trip")
	dir, err := os.MkdirTemp("", "attentiongan-demo")
	if err != nil {
		klog.Fatalf("Error creating temp dir: %v", err)
	}
	defer os.RemoveAll(dir)
	if err := gan.SaveNetworks(dir, "latest"); err != nil {
		klog.Fatalf("Error saving networks: %v", err)
	}

	testOpts := opts
	testOpts.IsTrain = false
	testNets, err := networks.Build(cfg, false, rand.New(rand.NewSource(7)))
	if err != nil {
		klog.Fatalf("Error building test networks: %v", err)
	}
	inference, err := model.New(testOpts, testNets, nil)
	if err != nil {
		klog.Fatalf("Error creating test model: %v", err)
	}
	if err := inference.LoadNetworks(dir, "latest"); err != nil {
		klog.Fatalf("Error loading networks: %v", err)
	}
	if err := inference.SetInput(batch); err != nil {
		klog.Fatalf("Error setting input: %v", err)
	}
	if err := inference.Forward(); err != nil {
		klog.Fatalf("Error in forward: %v", err)
	}
	fmt.Printf("loaded %v, inference produced %d visuals\n", inference.ModelNames(), len(inference.Visuals()))

	fmt.Println("\n--- demo complete ---")
}
