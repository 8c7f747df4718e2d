package vm

// ---------------------------------------------------------------------------
// Stack
// ---------------------------------------------------------------------------

func (vm *VM) push(v Value) error {
	if vm.sp >= len(vm.stack) {
		return vm.runtimeError("Stack overflow.")
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

func (vm *VM) pop() (Value, error) {
	if vm.sp <= 0 {
		return Empty, vm.runtimeError("Stack underflow.")
	}
	vm.sp--
	v := vm.stack[vm.sp]
	// Drop the slot's handle so a popped object is not kept alive by a dead slot.
	vm.stack[vm.sp] = Empty
	return v, nil
}

// peek returns the value distance slots below the top without popping.
func (vm *VM) peek(distance int) (Value, error) {
	idx := vm.sp - 1 - distance
	if idx < 0 {
		return Empty, vm.runtimeError("Stack underflow.")
	}
	return vm.stack[idx], nil
}

// peekPair returns the left and right operands of a binary instruction.
// The right operand is on top of the stack.
func (vm *VM) peekPair() (left, right Value, err error) {
	if right, err = vm.peek(0); err != nil {
		return
	}
	left, err = vm.peek(1)
	return
}

// replaceTop pops n operands and pushes result in their place.
func (vm *VM) replaceTop(n int, result Value) error {
	for i := 0; i < n; i++ {
		if _, err := vm.pop(); err != nil {
			return err
		}
	}
	return vm.push(result)
}
