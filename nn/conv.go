package nn

import (
	"fmt"
	"math/rand"
	"time"

	"go-attentiongan/tensor"
)

// Conv2D Struct implements a 2D convolutional layer fully integrated with the autograd system.
type Conv2D struct {
	Weight  *tensor.Tensor // Shape: [OutChannels, InChannels, KernelHeight, KernelWidth]
	Bias    *tensor.Tensor // Shape: [OutChannels]
	Stride  int
	Padding int
}

// creates a new Conv2D layer with weights drawn from a time-seeded source.
func NewConv2D(inChannels, outChannels, kernelSize, stride, padding int) (*Conv2D, error) {
	return NewConv2DWithRand(inChannels, outChannels, kernelSize, stride, padding, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewConv2DWithRand is NewConv2D with an explicit random source, for reproducible networks.
func NewConv2DWithRand(inChannels, outChannels, kernelSize, stride, padding int, random *rand.Rand) (*Conv2D, error) {
	if inChannels <= 0 || outChannels <= 0 || kernelSize <= 0 || stride <= 0 || padding < 0 {
		return nil, fmt.Errorf("invalid conv2d config: in=%d out=%d kernel=%d stride=%d padding=%d", inChannels, outChannels, kernelSize, stride, padding)
	}
	weightShape := []int{outChannels, inChannels, kernelSize, kernelSize}
	weightData := make([]float64, outChannels*inChannels*kernelSize*kernelSize)
	for i := range weightData {
		weightData[i] = (2*random.Float64() - 1) * 0.1
	}
	weights, err := tensor.NewTensor(weightShape, weightData)
	if err != nil {
		return nil, fmt.Errorf("failed to create weight tensor: %w", err)
	}
	weights.RequiresGrad = true

	bias, err := tensor.NewTensor([]int{outChannels}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create bias tensor: %w", err)
	}
	bias.RequiresGrad = true

	return &Conv2D{
		Weight:  weights,
		Bias:    bias,
		Stride:  stride,
		Padding: padding,
	}, nil
}

// Forward performs the forward pass and builds the autograd graph.
// the im2col matmul gets a custom backward so the gradient reaches the input even
// when the kernel is frozen (a discriminator during the generator update).
func (c *Conv2D) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	wShape := c.Weight.GetShape()
	outChannels, inChannels, kernelHeight, kernelWidth := wShape[0], wShape[1], wShape[2], wShape[3]

	batchSize, channels, height, width, err := tensor.Dims4(input)
	if err != nil {
		return nil, fmt.Errorf("conv forward: %w", err)
	}
	if channels != inChannels {
		return nil, fmt.Errorf("conv forward: input has %d channels, layer expects %d", channels, inChannels)
	}

	inputCols, err := tensor.Im2Col(input, kernelHeight, kernelWidth, c.Stride, c.Padding)
	if err != nil {
		return nil, fmt.Errorf("conv forward failed during im2col: %w", err)
	}

	// reshape kernel weights into a 2D matrix [OutChannels, InChannels*kH*kW]
	kernelMatrix, err := tensor.Reshape(c.Weight, []int{outChannels, tensor.Numel(c.Weight) / outChannels})
	if err != nil {
		return nil, fmt.Errorf("conv forward failed reshaping kernel: %w", err)
	}

	outputMatMul, err := tensor.MatMulTensor(kernelMatrix, inputCols)
	if err != nil {
		return nil, fmt.Errorf("conv forward failed during matmul: %w", err)
	}

	if kernelMatrix.RequiresGrad || input.RequiresGrad {
		outputMatMul.RequiresGrad = true
		outputMatMul.Parents = []*tensor.Tensor{kernelMatrix, input}
		outputMatMul.Operation = "conv2d"
		outputMatMul.BackwardFunc = func(grad *tensor.Tensor) {
			if kernelMatrix.RequiresGrad {
				inputColsT, _ := tensor.Transpose(inputCols)
				gradForKernelMatrix, err := tensor.MatMulTensor(grad, inputColsT)
				if err == nil {
					kernelMatrix.Backward(gradForKernelMatrix)
				}
			}
			if input.RequiresGrad {
				kernelMatrixT, _ := tensor.Transpose(tensor.Detach(kernelMatrix))
				gradForInputCols, err := tensor.MatMulTensor(kernelMatrixT, grad)
				if err != nil {
					return
				}
				gradForInput, err := tensor.Col2Im(gradForInputCols, input.GetShape(), kernelHeight, kernelWidth, c.Stride, c.Padding)
				if err != nil {
					return
				}
				input.Backward(gradForInput)
			}
		}
	}

	// reshape the output back into an image-like format
	outHeight := tensor.ConvOutputSize(height, kernelHeight, c.Stride, c.Padding)
	outWidth := tensor.ConvOutputSize(width, kernelWidth, c.Stride, c.Padding)
	outputReshaped, err := tensor.Reshape(outputMatMul, []int{outChannels, batchSize, outHeight, outWidth})
	if err != nil {
		return nil, fmt.Errorf("conv forward failed reshaping output: %w", err)
	}

	outputPermuted, err := tensor.Permute(outputReshaped, []int{1, 0, 2, 3})
	if err != nil {
		return nil, fmt.Errorf("conv forward failed during permute: %w", err)
	}

	finalOutput, err := tensor.AddTensorBroadcast(outputPermuted, c.Bias)
	if err != nil {
		return nil, fmt.Errorf("conv forward failed during bias add: %w", err)
	}

	return finalOutput, nil
}

func (c *Conv2D) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{c.Weight, c.Bias}
}

func (c *Conv2D) ZeroGrad() {
	c.Weight.ZeroGrad()
	c.Bias.ZeroGrad()
}

func (c *Conv2D) Name() string {
	return fmt.Sprintf("Conv2D(%d->%d, k=%d, s=%d, p=%d)", c.Weight.GetShape()[1], c.Weight.GetShape()[0], c.Weight.GetShape()[2], c.Stride, c.Padding)
}
