package vm

import "fmt"

// ---------------------------------------------------------------------------
// Kernel methods: built-in operations invoked by numeric id
// ---------------------------------------------------------------------------

// KernelMethod identifies a built-in operation the VM implements directly.
type KernelMethod uint8

const (
	KernelPrint KernelMethod = iota

	kernelMethodCount
)

var kernelMethodNames = [kernelMethodCount]string{
	KernelPrint: "print",
}

type kernelFunc func(vm *VM) error

// kernelMethods is indexed by KernelMethod.
var kernelMethods = [kernelMethodCount]kernelFunc{
	KernelPrint: kernelPrint,
}

// Valid reports whether k names a kernel method.
func (k KernelMethod) Valid() bool {
	return k < kernelMethodCount
}

// kernelMethodFor converts an instruction operand to a kernel method id.
// The range is checked before narrowing so large operands cannot wrap
// onto a real method.
func kernelMethodFor(operand int) (KernelMethod, bool) {
	if operand < 0 || operand >= int(kernelMethodCount) {
		return 0, false
	}
	return KernelMethod(operand), true
}

func (k KernelMethod) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kernel(%d)", k)
	}
	return kernelMethodNames[k]
}

// kernelPrint pops one value and writes it followed by a newline.
func kernelPrint(vm *VM) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(vm.out, DisplayValue(v))
	return err
}
