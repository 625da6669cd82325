package main

import (
	"flag"
	"fmt"
	"math/rand"
	"time"

	"k8s.io/klog/v2"

	"go-attentiongan/data"
	"go-attentiongan/imagepool"
	"go-attentiongan/losses"
	"go-attentiongan/model"
	"go-attentiongan/networks"
	"go-attentiongan/rotation"
	"go-attentiongan/tensor"
	"go-attentiongan/utility"
)

// bench params
var (
	flagIterations = flag.Int("iterations", 20, "Iterations per benchmark.")
	flagBatchSize  = flag.Int("batch_size", 2, "Images per domain in a batch.")
	flagChannels   = flag.Int("channels", 3, "Image channels.")
	flagSeed       = flag.Int64("seed", 1, "Random seed.")
)

// we time the pieces of one training step (for -iterations iterations):
// 1) rotation batch                 - 8, 16, 32
// 2) image pool query (full pool)   - 8, 16, 32
// 3) rotation classification loss   - 8, 16, 32
// 4) generator forward              - 8, 16, 32
// 5) full optimize_parameters step  - 8, 16, 32

// every benchmark reports the mean duration per iteration.

func timeIt(iterations int, fn func() error) time.Duration {
	var totalDuration time.Duration
	for i := 0; i < iterations; i++ {
		start := time.Now()
		if err := fn(); err != nil {
			klog.Fatalf("benchmark iteration %d failed: %v", i, err)
		}
		totalDuration += time.Since(start)
	}
	return totalDuration / time.Duration(iterations)
}

func benchmarkRotate(images *tensor.Tensor, iterations int) time.Duration {
	return timeIt(iterations, func() error {
		_, err := rotation.Rotate(images)
		return err
	})
}

func benchmarkPoolQuery(images *tensor.Tensor, iterations int, rng *rand.Rand) time.Duration {
	pool, err := imagepool.New(50, rng)
	if err != nil {
		klog.Fatalf("image pool: %v", err)
	}
	for pool.Len() < pool.Size() {
		if _, err := pool.Query(images); err != nil {
			klog.Fatalf("image pool: %v", err)
		}
	}
	return timeIt(iterations, func() error {
		_, err := pool.Query(images)
		return err
	})
}

func benchmarkRotationLoss(batchSize, size, iterations int, rng *rand.Rand) time.Duration {
	values := make([]float64, 4*batchSize*rotation.NumClasses*size*size)
	for i := range values {
		values[i] = rng.Float64()
	}
	prediction, _ := tensor.NewTensor([]int{4 * batchSize, rotation.NumClasses, size, size}, values)
	return timeIt(iterations, func() error {
		_, err := losses.RotationClassificationLoss(batchSize, prediction)
		return err
	})
}

func benchmarkGenerator(gen model.Generator, images *tensor.Tensor, iterations int) time.Duration {
	return timeIt(iterations, func() error {
		_, err := gen.Forward(images)
		return err
	})
}

func benchmarkStep(gan *model.AttentionGAN, batch model.Batch, iterations int) time.Duration {
	if err := gan.SetInput(batch); err != nil {
		klog.Fatalf("set input: %v", err)
	}
	return timeIt(iterations, gan.OptimizeParameters)
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	rng := rand.New(rand.NewSource(*flagSeed))
	iterations := *flagIterations
	fmt.Println("--- AttentionGAN Step Benchmarks ---")
	fmt.Printf("Iterations per benchmark: %d, batch size: %d\n\n", iterations, *flagBatchSize)

	for _, size := range []int{8, 16, 32} {
		batch, err := data.Synthetic(*flagBatchSize, *flagChannels, size, rng)
		if err != nil {
			klog.Fatalf("synthetic batch: %v", err)
		}

		cfg := networks.DefaultConfig()
		cfg.InputNC, cfg.OutputNC = *flagChannels, *flagChannels
		nets, err := networks.Build(cfg, true, rng)
		if err != nil {
			klog.Fatalf("networks: %v", err)
		}
		opts := model.DefaultOptions()
		opts.InputNC, opts.OutputNC = *flagChannels, *flagChannels
		gan, err := model.New(opts, nets, rng)
		if err != nil {
			klog.Fatalf("model: %v", err)
		}

		fmt.Printf("--- Image size: %dx%d ---\n", size, size)
		fmt.Printf("Rotation batch: %v\n", benchmarkRotate(batch.A, iterations))
		fmt.Printf("Image pool query (full): %v\n", benchmarkPoolQuery(batch.A, iterations, rng))
		fmt.Printf("Rotation classification loss: %v\n", benchmarkRotationLoss(*flagBatchSize, size/4, iterations, rng))
		fmt.Printf("Generator forward: %v\n", benchmarkGenerator(nets.GA, batch.A, iterations))
		fmt.Printf("Full training step: %v\n", benchmarkStep(gan, batch, max(1, iterations/10))) // reduced iterations for the slow full step
		fmt.Println()
	}

	if stats, err := utility.ReadProcessStats(); err == nil {
		fmt.Printf("Process RSS: %d MiB, CPU: %.1f%%\n", stats.RSSMiB, stats.CPUPercent)
	}
	fmt.Println("\n--- Benchmarks Complete ---")
}
