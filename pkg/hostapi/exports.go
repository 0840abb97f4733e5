package hostapi

/*
#include <stdlib.h>
#include <string.h>
*/
import "C"
import "unsafe"

// OverlayVersion writes the extension version into output.
//
//export OverlayVersion
func OverlayVersion(output *C.char, outputsize C.size_t) {
	reply(bridge.Version(), output, outputsize)
}

// OverlayCall is the single entry point used by the host:
// command plus argc string arguments.
//
//export OverlayCall
func OverlayCall(output *C.char, outputsize C.size_t, input *C.char, argv **C.char, argc C.int) {
	command := C.GoString(input)
	args := argsFromC(argv, argc)
	reply(bridge.Call(command, args), output, outputsize)
}

func argsFromC(argv **C.char, argc C.int) []string {
	if argc <= 0 || argv == nil {
		return nil
	}
	ptrs := unsafe.Slice(argv, int(argc))
	args := make([]string, len(ptrs))
	for i, p := range ptrs {
		args[i] = C.GoString(p)
	}
	return args
}

// reply copies a NUL-terminated response into the host's buffer.
func reply(response string, output *C.char, outputsize C.size_t) {
	if outputsize == 0 {
		return
	}
	response = fitResponse(response, int(outputsize))
	result := C.CString(response)
	defer C.free(unsafe.Pointer(result))
	C.memmove(unsafe.Pointer(output), unsafe.Pointer(result), C.size_t(len(response)+1))
}
