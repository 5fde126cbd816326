package formula_test

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/usedatabrew/keg/internal/formula"
)

func ExampleResolve() {
	release, err := formula.NewParser(nil).ParseFile(context.Background(), filepath.Join("testdata", "blink.lua"))
	if err != nil {
		fmt.Println(err)
		return
	}

	res, err := formula.Resolve(release, "linux", "amd64")
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(res.Artifact.Filename())
	fmt.Println(res.Artifact.SHA256)

	_, err = formula.Resolve(release, "linux", "arm64")
	fmt.Println(err)
	// Output:
	// blink_1.14.0_linux_amd64.tar.gz
	// 9bf58c13971b0b5f2fb800f552b137ff73e33195238a04aaf7612886d950d12b
	// blink 1.14.0 is not supported on linux/arm64 (available: darwin/amd64, linux/amd64)
}
