package sealevel

const (
	CUCreateProgramAddressUnits        = 1500
	CUInvokeUnits                      = 1000
	CUSystemProgramDefaultComputeUnits = 150
	CUStakeProgramDefaultComputeUnits  = 750
	CUTokenProgramDefaultComputeUnits  = 1200
	CUAssociatedTokenComputeUnits      = 3000
	CULstPoolProgramComputeUnits       = 5000
)
