package asterisk_test

import (
	"fmt"

	"github.com/asterisk-lang/asterisk"
)

func Example() {
	interp := asterisk.New()

	value, err := interp.Run([]byte(`
fn fact(n) {
	if n <= 1 { return 1 }
	return n * fact(n - 1)
}
fact(5)`), "")
	if err != nil {
		panic(err)
	}
	fmt.Println(value)

	// Output:
	// 120
}

func Example_repl() {
	interp := asterisk.New()

	// the module environment persists across Run calls
	if _, err := interp.Run([]byte(`x = 10; y = 32`), ""); err != nil {
		panic(err)
	}
	value, err := interp.Run([]byte(`x + y`), "")
	if err != nil {
		panic(err)
	}
	fmt.Println(value)

	fmt.Println(interp.IsIncomplete([]byte(`fn f(a) {`)))

	// Output:
	// 42
	// true
}
