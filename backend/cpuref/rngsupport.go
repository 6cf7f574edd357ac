// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpuref

// rngSupportCode is the cpuref backend's support text for the
// population RNG contract, a direct transcription of the teacher's
// slrand package's stateless Philox2x32 counter-based generator into
// the backend's own C-like kernel source, since a single-threaded
// reference target has no curand/Philox library of its own to link
// against.
const rngSupportCode = `typedef struct { unsigned int x, y; } RNGCounter;

static RNGCounter rng;
static unsigned int rngKey;

static void philox2x32round(RNGCounter *counter, unsigned int key) {
	unsigned long long prod = (unsigned long long)0xD256D193u * (unsigned long long)counter->x;
	unsigned int hi = (unsigned int)(prod >> 32);
	unsigned int lo = (unsigned int)prod;
	counter->x = hi ^ key ^ counter->y;
	counter->y = lo;
}

static void philox2x32bumpkey(unsigned int *key) {
	*key += 0x9E3779B9u;
}

static RNGCounter philox2x32(RNGCounter counter, unsigned int key) {
	for (int i = 0; i < 10; i++) {
		philox2x32round(&counter, key);
		philox2x32bumpkey(&key);
	}
	return counter;
}

static void cpuRNGCounterIncr(RNGCounter *counter) {
	if (counter->x == 0xffffffffu) {
		counter->y++;
		counter->x = 0;
	} else {
		counter->x++;
	}
}

static float cpuUint32ToFloat(unsigned int val) {
	const float factor = 1.0f / (4294967295.0f + 1.0f);
	const float halffactor = 0.5f * factor;
	return (float)val * factor + halffactor;
}

static float cpuUint32ToFloat11(unsigned int val) {
	const float factor = 1.0f / (4294967295.0f + 1.0f);
	const float halffactor = 0.5f * factor;
	return 2.0f * ((float)(int)val * factor + halffactor);
}

static void cpuRNGInit(unsigned int seed) {
	rng.x = 0;
	rng.y = 0;
	rngKey = seed;
}

static void cpuRNGSkipAhead(unsigned int offset) {
	for (unsigned int i = 0; i < offset; i++) {
		cpuRNGCounterIncr(&rng);
	}
}

static float urand(RNGCounter *state) {
	RNGCounter r = philox2x32(*state, rngKey);
	cpuRNGCounterIncr(state);
	return cpuUint32ToFloat(r.x);
}

static float nrand(RNGCounter *state) {
	RNGCounter r = philox2x32(*state, rngKey);
	cpuRNGCounterIncr(state);
	const float PIf = 3.1415926535897932f;
	float u0 = cpuUint32ToFloat11(r.x);
	float u1 = cpuUint32ToFloat(r.y);
	float radius = sqrtf(-2.0f * logf(u1));
	return sinf(PIf * u0) * radius;
}

static float exprand(RNGCounter *state) {
	float u = urand(state);
	return -logf(1.0f - u);
}

static float gennrand(RNGCounter *state) {
	return urand(state);
}
`

// RNGSupportCode returns the support text above, used once per
// generated project regardless of how many groups reference urand/
// nrand/exprand/gennrand.
func (b *Backend) RNGSupportCode() string { return rngSupportCode }
