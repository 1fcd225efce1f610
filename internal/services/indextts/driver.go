package indextts

// driverScript loads IndexTTS2 once and synthesizes every line of a task file
// in order. It runs from the IndexTTS checkout so the local package imports.
const driverScript = `#!/usr/bin/env python3
import argparse
import json
import sys

sys.path.insert(0, ".")


def main():
    parser = argparse.ArgumentParser()
    parser.add_argument("--task", required=True)
    args = parser.parse_args()

    with open(args.task, "r", encoding="utf-8") as f:
        task = json.load(f)

    try:
        from indextts.infer_v2 import IndexTTS2

        options = task["options"]
        tts = IndexTTS2(
            cfg_path=options["cfg_path"],
            model_dir=options["model_dir"],
            use_fp16=options["use_fp16"],
            use_cuda_kernel=options["use_cuda_kernel"],
            use_deepspeed=options["use_deepspeed"],
        )
        for item in task["lines"]:
            tts.infer(
                spk_audio_prompt=item["ref_audio"],
                text=item["text"],
                output_path=item["output_wav"],
                emo_alpha=options["emo_alpha"],
                use_emo_text=options["use_emo_text"],
                use_random=options["use_random"],
                verbose=False,
            )
            print(json.dumps({"index": item["index"], "output": item["output_wav"]}), flush=True)
    except Exception as e:
        print(json.dumps({"error": str(e)}), file=sys.stderr)
        sys.exit(1)


if __name__ == "__main__":
    main()
`
