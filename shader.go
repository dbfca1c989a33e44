package gpucore

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
)

func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = uint32(b[byteIndex]) |
			uint32(b[byteIndex+1])<<8 |
			uint32(b[byteIndex+2])<<16 |
			uint32(b[byteIndex+3])<<24
	}

	return byteCode
}

// CreateShader wraps pre-compiled SPIR-V for one stage. The bytecode length
// must be a non-zero multiple of four.
func (c *Core) CreateShader(stage ShaderStage, spirv []byte) (Shader, error) {
	if len(spirv) == 0 || len(spirv)%4 != 0 {
		return Shader{}, errors.Newf("%s shader bytecode of %d bytes is not a whole number of words", stage, len(spirv))
	}

	module, _, err := c.device.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: bytesToBytecode(spirv),
	})
	if err != nil {
		return Shader{}, errors.Wrapf(err, "creating %s shader module", stage)
	}

	return Shader{c.insert(&shaderRecord{module: module, stage: stage})}, nil
}
