package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"k8s.io/klog/v2"

	"go-attentiongan/data"
	"go-attentiongan/losses"
	"go-attentiongan/model"
	"go-attentiongan/networks"
	"go-attentiongan/utility"
)

var (
	flagDataRoot      = flag.String("dataroot", "", "Dataset root holding trainA and trainB. Empty trains on synthetic data.")
	flagName          = flag.String("name", "attentiongan", "Name of the experiment; checkpoints go to <checkpoints_dir>/<name>.")
	flagCheckpoints   = flag.String("checkpoints_dir", "checkpoints", "Directory models are saved in.")
	flagContinue      = flag.Bool("continue_train", false, "Load the latest checkpoint before training.")
	flagLoadLabel     = flag.String("epoch", "latest", "Checkpoint label to load with -continue_train.")
	flagSeed          = flag.Int64("seed", 0, "Random seed; 0 uses the current time.")
	flagDashboard     = flag.Bool("dashboard", false, "Show the terminal dashboard instead of log lines.")
	flagInputNC       = flag.Int("input_nc", 3, "Channels of domain A images.")
	flagOutputNC      = flag.Int("output_nc", 3, "Channels of domain B images.")
	flagNGF           = flag.Int("ngf", 8, "Generator filters in the first conv layer.")
	flagNDF           = flag.Int("ndf", 8, "Discriminator filters in the first conv layer.")
	flagNLayersD      = flag.Int("n_layers_D", 2, "Stride-2 layers in the discriminator.")
	flagInitType      = flag.String("init_type", "normal", "Network initialization [normal | uniform].")
	flagInitGain      = flag.Float64("init_gain", 0.02, "Scale for normal and uniform initialization.")
	flagLoadSize      = flag.Int("load_size", 16, "Images are resized to load_size x load_size.")
	flagBatchSize     = flag.Int("batch_size", 1, "Input batch size.")
	flagSerial        = flag.Bool("serial_batches", false, "Take B images in order instead of at random.")
	flagDirection     = flag.String("direction", "AtoB", "AtoB or BtoA.")
	flagLambdaA       = flag.Float64("lambda_A", 10.0, "Weight for cycle loss (A -> B -> A).")
	flagLambdaB       = flag.Float64("lambda_B", 10.0, "Weight for cycle loss (B -> A -> B).")
	flagLambdaIdt     = flag.Float64("lambda_identity", 0.5, "Identity loss weight relative to the cycle weights; 0 disables it.")
	flagPoolSize      = flag.Int("pool_size", 50, "Size of the image buffers that store previously generated images.")
	flagGANMode       = flag.String("gan_mode", "lsgan", "GAN objective [lsgan | vanilla | wgangp].")
	flagRotationW     = flag.Float64("weight_rotation_loss_g", 1.0, "Generator rotation loss weight; discriminators use 5x.")
	flagRotationMode  = flag.String("rotation_input_mode", "rotated_only", "What discriminators see [rotated_only | combined].")
	flagOptimizer     = flag.String("optimizer", "adam", "Optimizer [adam | sgd].")
	flagLR            = flag.Float64("lr", 0.0002, "Initial learning rate.")
	flagBeta1         = flag.Float64("beta1", 0.5, "Adam momentum term.")
	flagLRPolicy      = flag.String("lr_policy", "linear", "Learning rate policy [linear | constant].")
	flagEpochCount    = flag.Int("epoch_count", 1, "Starting epoch.")
	flagNEpochs       = flag.Int("n_epochs", 5, "Epochs at the initial learning rate.")
	flagNEpochsDecay  = flag.Int("n_epochs_decay", 5, "Epochs to linearly decay the learning rate to zero.")
	flagItersPerEpoch = flag.Int("synthetic_iters", 20, "Iterations per epoch on synthetic data.")
	flagPrintFreq     = flag.Int("print_freq", 10, "Iterations between loss log lines.")
	flagSaveEpochFreq = flag.Int("save_epoch_freq", 5, "Epochs between labelled checkpoints.")
	flagSaveDisk      = flag.Bool("saveDisk", false, "Only save the main visuals.")
)

type source interface {
	Len() int
	Batch(i, batchSize int) (model.Batch, error)
}

// syntheticSource serves freshly drawn toy batches.
type syntheticSource struct {
	iters, channelsA, channelsB, size int
	rng                               *rand.Rand
}

func (s *syntheticSource) Len() int { return s.iters }

func (s *syntheticSource) Batch(_, batchSize int) (model.Batch, error) {
	batch, err := data.Synthetic(batchSize, s.channelsA, s.size, s.rng)
	if err != nil || s.channelsA == s.channelsB {
		return batch, err
	}
	other, err := data.Synthetic(batchSize, s.channelsB, s.size, s.rng)
	if err != nil {
		return batch, err
	}
	batch.B = other.B
	return batch, nil
}

func options() model.Options {
	opts := model.DefaultOptions()
	opts.Name = *flagName
	opts.InputNC, opts.OutputNC = *flagInputNC, *flagOutputNC
	opts.Direction = model.Direction(*flagDirection)
	opts.LambdaA, opts.LambdaB, opts.LambdaIdentity = *flagLambdaA, *flagLambdaB, *flagLambdaIdt
	opts.PoolSize = *flagPoolSize
	opts.GANMode = losses.GANMode(*flagGANMode)
	opts.WeightRotationLossG = *flagRotationW
	opts.RotationInputMode = model.RotationInputMode(*flagRotationMode)
	opts.SaveDisk = *flagSaveDisk
	opts.Optimizer, opts.LR, opts.Beta1 = *flagOptimizer, *flagLR, *flagBeta1
	opts.LRPolicy, opts.EpochCount, opts.NEpochs, opts.NEpochsDecay = *flagLRPolicy, *flagEpochCount, *flagNEpochs, *flagNEpochsDecay
	return opts
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	seed := *flagSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	opts := options()
	if *flagPrintFreq <= 0 || *flagSaveEpochFreq <= 0 || *flagBatchSize <= 0 {
		klog.Fatalf("-print_freq, -save_epoch_freq and -batch_size must be positive")
	}

	// -- Load Data --
	// batches are read in A/B folder order; the model applies -direction itself
	channelsA, channelsB := opts.InputNC, opts.OutputNC
	if opts.Direction == model.BtoA {
		channelsA, channelsB = opts.OutputNC, opts.InputNC
	}
	var dataset source
	if *flagDataRoot == "" {
		klog.Infof("no -dataroot given, training on synthetic data")
		dataset = &syntheticSource{iters: *flagItersPerEpoch, channelsA: channelsA, channelsB: channelsB, size: *flagLoadSize, rng: rng}
	} else {
		folders, err := data.NewUnalignedDataset(*flagDataRoot, "train", *flagLoadSize, *flagSerial, rng)
		if err != nil {
			klog.Fatalf("Failed to open dataset: %v", err)
		}
		folders.InputNC, folders.OutputNC = channelsA, channelsB
		dataset = folders
	}
	klog.Infof("The number of training images = %d", dataset.Len())

	// -- Initialize Model --
	netConfig := networks.Config{
		InputNC: opts.InputNC, OutputNC: opts.OutputNC,
		NGF: *flagNGF, NDF: *flagNDF, NLayersD: *flagNLayersD,
		InitType: *flagInitType, InitGain: *flagInitGain,
	}
	nets, err := networks.Build(netConfig, true, rng)
	if err != nil {
		klog.Fatalf("Failed to build networks: %v", err)
	}
	gan, err := model.New(opts, nets, rng)
	if err != nil {
		klog.Fatalf("Failed to create model: %v", err)
	}
	saveDir := filepath.Join(*flagCheckpoints, opts.Name)
	if *flagContinue {
		if err := gan.LoadNetworks(saveDir, *flagLoadLabel); err != nil {
			klog.Fatalf("Failed to load checkpoint: %v", err)
		}
	}
	if klog.V(1).Enabled() {
		utility.NewModelInspector(nets.GA.(utility.Network), nets.DA.(utility.Network)).Summary(os.Stderr)
	}

	var dashboard *utility.TrainingDashboard
	if *flagDashboard {
		dashboard, err = utility.NewTrainingDashboard(utility.Hyperparameters{
			LearningRate: opts.LR, BatchSize: *flagBatchSize, Epochs: opts.NEpochs + opts.NEpochsDecay,
			GANMode: string(opts.GANMode), LambdaA: opts.LambdaA, LambdaB: opts.LambdaB,
			LambdaIdentity: opts.LambdaIdentity, RotationWeight: opts.WeightRotationLossG,
		})
		if err != nil {
			klog.Fatalf("Failed to start dashboard: %v", err)
		}
		defer dashboard.Close()
	}

	// -- Training Loop --
	history := utility.NewLossHistory()
	itersPerEpoch := (dataset.Len() + *flagBatchSize - 1) / *flagBatchSize
	lastEpoch := opts.NEpochs + opts.NEpochsDecay
	totalStart := time.Now()
	totalIters := 0

	for epoch := opts.EpochCount; epoch <= lastEpoch; epoch++ {
		epochStart := time.Now()
		for i := 0; i < itersPerEpoch; i++ {
			batch, err := dataset.Batch(i, *flagBatchSize)
			if err != nil {
				klog.Fatalf("Epoch %d, iteration %d: loading batch failed: %v", epoch, i, err)
			}
			if err := gan.SetInput(batch); err != nil {
				klog.Fatalf("Epoch %d, iteration %d: %v", epoch, i, err)
			}
			if err := gan.OptimizeParameters(); err != nil {
				klog.Fatalf("Epoch %d, iteration %d: training step failed: %v", epoch, i, err)
			}
			totalIters++

			l := gan.CurrentLosses()
			if dashboard != nil {
				dashboard.AddLosses(l.GA+l.GB, l.DA+l.DB)
				dashboard.UpdateStats(epoch, lastEpoch, i+1, itersPerEpoch, gan.LearningRate(), l.Map(), epochStart, totalStart)
			}
			if totalIters%*flagPrintFreq == 0 {
				history.Add(float64(totalIters), l.Map())
				r := gan.RotationLosses()
				klog.V(1).Infof("(epoch: %d, iters: %d, time: %.3f) %s rot_D_A: %.3f rot_D_B: %.3f rot_G_A: %.3f rot_G_B: %.3f",
					epoch, i+1, time.Since(epochStart).Seconds()/float64(i+1), l, r.DA, r.DB, r.GA, r.GB)
			}
		}

		if err := gan.SaveNetworks(saveDir, "latest"); err != nil {
			klog.Fatalf("Failed to save checkpoint: %v", err)
		}
		if epoch%*flagSaveEpochFreq == 0 {
			if err := gan.SaveNetworks(saveDir, fmt.Sprint(epoch)); err != nil {
				klog.Fatalf("Failed to save checkpoint: %v", err)
			}
			saveVisuals(gan, filepath.Join(saveDir, "web", "images"), epoch)
		}
		msg := fmt.Sprintf("End of epoch %d / %d \t Time Taken: %v", epoch, lastEpoch, time.Since(epochStart).Round(time.Millisecond))
		if dashboard != nil {
			dashboard.Log(msg)
		}
		klog.Info(msg)
		gan.UpdateLearningRate()
	}

	if len(history.Iterations) > 0 {
		if err := utility.SaveLossPlot(filepath.Join(saveDir, "loss.png"), history); err != nil {
			klog.Errorf("Failed to save loss plot: %v", err)
		}
	}
	if stats, err := utility.ReadProcessStats(); err == nil {
		klog.Infof("training finished in %v (rss %d MiB)", time.Since(totalStart).Round(time.Second), stats.RSSMiB)
	}
	if dashboard != nil {
		dashboard.Log("Training complete. Press q to quit.")
		dashboard.Loop()
	}
}

func saveVisuals(gan *model.AttentionGAN, dir string, epoch int) {
	for _, v := range gan.Visuals() {
		if v.Image == nil {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("epoch%03d_%s.png", epoch, v.Name))
		if err := utility.SaveImage(path, v.Image); err != nil {
			klog.Warningf("skipping visual %s: %v", v.Name, err)
		}
	}
}
