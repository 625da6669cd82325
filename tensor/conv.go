package tensor

import (
	"fmt"
	"runtime"
	"sync"
)

// parallelFor splits [0, jobs) into contiguous chunks, one goroutine per CPU.
// fn must only write memory owned by its own job indices.
func parallelFor(jobs int, fn func(start, end int)) {
	numGoroutines := runtime.NumCPU()
	perGo := (jobs + numGoroutines - 1) / numGoroutines
	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		start, end := i*perGo, (i+1)*perGo
		if end > jobs {
			end = jobs
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ConvOutputSize returns the spatial output size of a convolution along one axis.
func ConvOutputSize(in, kernel, stride, padding int) int {
	return (in+2*padding-kernel)/stride + 1
}

// Im2Col converts image-like data [N, C, H, W] into a column matrix
// [C*kH*kW, N*outH*outW], parallelised over the batch dimension.
func Im2Col(input *Tensor, kernelHeight, kernelWidth, stride, padding int) (*Tensor, error) {
	batchSize, channels, height, width, err := Dims4(input)
	if err != nil {
		return nil, fmt.Errorf("im2col: %w", err)
	}

	outHeight := ConvOutputSize(height, kernelHeight, stride, padding)
	outWidth := ConvOutputSize(width, kernelWidth, stride, padding)
	if outHeight <= 0 || outWidth <= 0 {
		return nil, fmt.Errorf("convolution produces invalid output size: %dx%d", outHeight, outWidth)
	}

	kernelSize := channels * kernelHeight * kernelWidth
	outputCols := outHeight * outWidth
	numCols := batchSize * outputCols
	colData := make([]float64, kernelSize*numCols)
	inputData := input.data

	parallelFor(batchSize, func(sB, eB int) {
		for b := sB; b < eB; b++ {
			for c := 0; c < channels; c++ {
				for kh := 0; kh < kernelHeight; kh++ {
					for kw := 0; kw < kernelWidth; kw++ {
						colRow := c*(kernelHeight*kernelWidth) + kh*kernelWidth + kw
						for oh := 0; oh < outHeight; oh++ {
							inputRow := kh - padding + oh*stride
							if inputRow < 0 || inputRow >= height {
								continue
							}
							for ow := 0; ow < outWidth; ow++ {
								inputCol := kw - padding + ow*stride
								if inputCol < 0 || inputCol >= width {
									continue
								}
								colCol := b*outputCols + oh*outWidth + ow
								srcIndex := ((b*channels+c)*height+inputRow)*width + inputCol
								colData[colRow*numCols+colCol] = inputData[srcIndex]
							}
						}
					}
				}
			}
		}
	})

	colMatrix, err := NewTensor([]int{kernelSize, numCols}, colData)
	if err != nil {
		return nil, fmt.Errorf("im2col failed to create output tensor: %w", err)
	}
	return colMatrix, nil
}

// Col2Im scatters a column matrix back into image layout, summing overlapping windows.
// It is the adjoint of Im2Col and is used in the convolution backward pass.
func Col2Im(cols *Tensor, inputShape []int, kernelHeight, kernelWidth, stride, padding int) (*Tensor, error) {
	if len(inputShape) != 4 {
		return nil, fmt.Errorf("col2im requires a 4D target inputShape, but got %dD", len(inputShape))
	}
	batchSize, channels, height, width := inputShape[0], inputShape[1], inputShape[2], inputShape[3]

	outHeight := ConvOutputSize(height, kernelHeight, stride, padding)
	outWidth := ConvOutputSize(width, kernelWidth, stride, padding)

	imgData := make([]float64, batchSize*channels*height*width)
	colsData := cols.data
	numCols := cols.shape[1]

	// each job owns one (batch, channel) plane of imgData
	parallelFor(batchSize*channels, func(start, end int) {
		for job := start; job < end; job++ {
			b, c := job/channels, job%channels
			for kh := 0; kh < kernelHeight; kh++ {
				for kw := 0; kw < kernelWidth; kw++ {
					colRow := c*(kernelHeight*kernelWidth) + kh*kernelWidth + kw
					for oh := 0; oh < outHeight; oh++ {
						inputRow := kh - padding + oh*stride
						if inputRow < 0 || inputRow >= height {
							continue
						}
						for ow := 0; ow < outWidth; ow++ {
							inputCol := kw - padding + ow*stride
							if inputCol < 0 || inputCol >= width {
								continue
							}
							colCol := b*outHeight*outWidth + oh*outWidth + ow
							destIndex := ((b*channels+c)*height+inputRow)*width + inputCol
							imgData[destIndex] += colsData[colRow*numCols+colCol]
						}
					}
				}
			}
		}
	})

	imgTensor, err := NewTensor(inputShape, imgData)
	if err != nil {
		return nil, fmt.Errorf("col2im failed to create output tensor: %w", err)
	}
	return imgTensor, nil
}
