package tensor

// backwardPass holds the gradients collected for each tensor of one backward
// pass until every consumer of that tensor has pushed its share.
type backwardPass struct {
	pending map[*Tensor]*Tensor
}

func (p *backwardPass) add(t *Tensor, grad *Tensor) {
	sum, ok := p.pending[t]
	if !ok {
		p.pending[t] = &Tensor{shape: append([]int{}, t.shape...), data: append([]float64{}, grad.data...)}
		return
	}
	for i := range sum.data {
		sum.data[i] += grad.data[i]
	}
}

// TopologicalOrder returns root and every tensor below it that requires grad,
// parents before children. tensors that do not require grad are left out along
// with everything only reachable through them.
func TopologicalOrder(root *Tensor) []*Tensor {
	visited := make(map[*Tensor]bool)
	var order []*Tensor

	var dfs func(*Tensor)
	dfs = func(t *Tensor) {
		if t == nil || visited[t] {
			return
		}
		visited[t] = true
		if !t.RequiresGrad {
			return
		}
		for _, parent := range t.Parents {
			dfs(parent)
		}
		order = append(order, t)
	}

	dfs(root)
	return order
}

// runBackward visits the graph below root children first. each tensor gets its
// summed gradient added to Grad and then runs its BackwardFunc exactly once.
func runBackward(root *Tensor, grad *Tensor) {
	order := TopologicalOrder(root)
	pass := &backwardPass{pending: make(map[*Tensor]*Tensor, len(order))}

	previous := make([]*backwardPass, len(order))
	for i, t := range order {
		previous[i] = t.pass
		t.pass = pass
	}
	defer func() {
		for i, t := range order {
			t.pass = previous[i]
		}
	}()

	pass.add(root, grad)
	for i := len(order) - 1; i >= 0; i-- {
		t := order[i]
		g, ok := pass.pending[t]
		if !ok {
			continue
		}
		delete(pass.pending, t)
		t.accumulateGrad(g)
		if t.BackwardFunc != nil {
			t.BackwardFunc(g)
		}
	}
}
